package fingerprint

import "errors"

var ErrUnreadableFile = errors.New("unreadable build context file")
