//go:build !linux

package reactor

func newEpollBackend(*options) (Backend, error) {
	return nil, backendError(BackendEpoll, "create", ErrBackendUnsupported)
}
