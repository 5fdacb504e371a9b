/*
Package workers sizes the conversion slot pool for the CPUs actually
available to the process.

Each conversion runs one ffmpeg process at a time and ffmpeg keeps a core
busy, so the default is one slot per CPU. In a container the host CPU count
from runtime.NumCPU is the wrong number; GOMAXPROCS follows the cgroup
limit (Go 1.19+), and that is what Count uses:

	// One slot per available CPU, no upper bound
	slots := workers.ForCPU(0)

	// 1.5 per CPU, at most 12
	slots := workers.Count(1.5, 12)

# Environment Variable Override

Operators can pin the count regardless of CPU detection:

	env:
	- name: CONVERT_WORKERS
	  value: "2"

Invalid or non-positive values are logged and ignored.
*/
package workers
