package domain

import "errors"

// ErrImageNotAvailable is returned by image sources that cannot supply an
// image, e.g. an empty folder or a remote fetch that ran out of retries.
var ErrImageNotAvailable = errors.New("image not available")
