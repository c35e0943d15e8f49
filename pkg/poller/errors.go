package poller

import "errors"

var ErrShortRead = errors.New("poller: read returned fewer words than the definition spans")
var ErrGroupExists = errors.New("poller: group name already registered")
