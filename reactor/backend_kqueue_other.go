//go:build !darwin

package reactor

func newKqueueBackend(*options) (Backend, error) {
	return nil, backendError(BackendKqueue, "create", ErrBackendUnsupported)
}
