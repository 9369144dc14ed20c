//go:build !linux && !darwin

package reactor

var notifyPayload [1]byte

func openNotifier() (int, int, error) { return -1, -1, ErrBackendUnsupported }

func notifyCount(b []byte) uint64 { return uint64(len(b)) }

func closeFD(int) error { return ErrBackendUnsupported }

func writeFD(int, []byte) error { return ErrBackendUnsupported }

func drainFD(int, []byte, func([]byte) uint64) (uint64, error) {
	return 0, ErrBackendUnsupported
}
