//go:build !linux && !darwin

package reactor

func defaultBackends() []BackendKind {
	return []BackendKind{BackendPoll, BackendSelect}
}
