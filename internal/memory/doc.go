// Package memory configures Go's soft memory limit for containerized
// deployments.
//
// Go does not derive GOMEMLIMIT from the cgroup limit. [ConfigureFromEnv]
// reads the container limit from MEMORY_LIMIT (usually set through the
// Kubernetes Downward API) and gives the Go heap MEMORY_RATIO of it, leaving
// the rest for the ffmpeg child processes that do the actual encoding.
// An explicit GOMEMLIMIT always wins.
//
//	func main() {
//	    memory.ConfigureFromEnv()
//	    // ...
//	}
//
// Example Kubernetes wiring:
//
//	env:
//	  - name: MEMORY_LIMIT
//	    valueFrom:
//	      resourceFieldRef:
//	        resource: limits.memory
//	  - name: MEMORY_RATIO
//	    value: "0.4"
package memory
