package message

import "strconv"

// ID is a request identifier that remembers whether the envelope carried
// one at all.
//
// Zero is the notification sentinel: an absent id, a null id and an explicit
// "id":0 all report IsNotification. Present tells the first case apart from
// the other two for callers that need it.
type ID struct {
	n       int32
	present bool
}

// NoID is the absent identifier.
var NoID = ID{}

// NewID returns a present identifier.
func NewID(n int32) ID { return ID{n: n, present: true} }

func (id ID) Value() int32 { return id.n }

func (id ID) Present() bool { return id.present }

func (id ID) IsNotification() bool { return id.n == 0 }

func (id ID) String() string {
	if !id.present {
		return "<none>"
	}
	return strconv.FormatInt(int64(id.n), 10)
}
