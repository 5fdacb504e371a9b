/*
Package streaming delivers finished artifacts to HTTP clients with timeout
protection.

A conversion's scratch files are only released after the response has been
written, so a client that stops reading would otherwise keep a handler
goroutine and its files alive indefinitely. [TimeoutWriter] bounds every
chunk write and the total delivery time, and stops as soon as the request
context is canceled.

# Usage

	n, err := streaming.Deliver(r.Context(), w, streaming.Artifact{
		Path:        outcome.ArtifactPath,
		ContentType: "image/gif",
		Filename:    "animation.gif",
	}, streaming.DefaultConfig())
	if errors.Is(err, streaming.ErrClientGone) {
		// Client went away; scratch files are released either way
	}

[Deliver] sets Content-Type, Content-Length and Content-Disposition before
writing the body. Once the body has started, errors can no longer change
the status code; callers log them and count them as delivery failures.

# Errors

  - [ErrWriteTimeout]: a chunk write or the whole delivery took too long
  - [ErrClientGone]: the request context was canceled
  - [ErrStreamCanceled]: the writer was closed during a write
*/
package streaming
