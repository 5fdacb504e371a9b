/*
Package filesystem wraps file access on the scratch directory with retries
for NFS stale file handle errors.

When SCRATCH_DIR is a shared NFS volume, a file ffmpeg has just written can
briefly report ESTALE to another client of the mount. [StatWithRetry] and
[OpenWithRetry] retry only that error, with exponential backoff, and return
every other error immediately.

	info, err := filesystem.StatWithRetry(output, filesystem.DefaultRetryConfig())

# Metrics

  - anim_converter_filesystem_stale_errors_total{operation}
  - anim_converter_filesystem_retries_total{operation,result}
*/
package filesystem
