//go:build linux

package reactor

func defaultBackends() []BackendKind {
	return []BackendKind{BackendEpoll, BackendPoll, BackendSelect}
}
