// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Thread-to-CPU pinning for the server event loops. Callers lock the
// goroutine to its OS thread first; pinning applies to the calling thread only.

package affinity

import (
	"fmt"

	"github.com/momentics/hioload-bench/api"
)

// SetAffinity pins the calling OS thread to a single logical CPU.
func SetAffinity(cpuID int) error {
	if cpuID < 0 {
		return fmt.Errorf("affinity: cpu %d: %w", cpuID, api.ErrInvalidArgument)
	}
	return setAffinityPlatform(cpuID)
}
