// Package download streams transfer bodies to disk with optional
// checksum validation, size limits and progress reporting.
//
// A [Sink] is installed as a handle's write-back callback. Data lands in a
// temporary file alongside the destination path and is renamed into place
// only when the transfer succeeded and every check passed:
//
//	sink, err := download.New(destPath, logger,
//		download.WithChecksum(sha256.New(), expectedHex),
//	)
//	h.SetWriteBack(sink.Write)
//	...
//	// in the completion callback:
//	err = sink.Finish(out, transferErr)
package download
