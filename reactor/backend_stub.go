//go:build !linux && !darwin

package reactor

func newPollBackend(*options) (Backend, error) {
	return nil, backendError(BackendPoll, "create", ErrBackendUnsupported)
}

func newSelectBackend(*options) (Backend, error) {
	return nil, backendError(BackendSelect, "create", ErrBackendUnsupported)
}
