//go:build darwin

package reactor

func defaultBackends() []BackendKind {
	return []BackendKind{BackendKqueue, BackendPoll, BackendSelect}
}
