package fs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/spawnvm/service/transport"
)

const messageExt = ".json"

// messageName encodes sender, per-sender counter and send time so that the
// receiver can restore FIFO order per sender and earliest-first across senders.
func messageName(source int, counter uint64, unixNano int64) string {
	return fmt.Sprintf("%06d-%012d-%020d%s", source, counter, unixNano, messageExt)
}

type messageKey struct {
	name     string
	source   int
	counter  uint64
	unixNano int64
}

func parseMessageName(name string) (*messageKey, bool) {
	if !strings.HasSuffix(name, messageExt) {
		return nil, false
	}
	parts := strings.Split(strings.TrimSuffix(name, messageExt), "-")
	if len(parts) != 3 {
		return nil, false
	}
	source, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, false
	}
	counter, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return nil, false
	}
	unixNano, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, false
	}
	return &messageKey{name: name, source: source, counter: counter, unixNano: unixNano}, true
}

// selectMessage returns the next envelope name to deliver for source
func selectMessage(names []string, source int) (string, bool) {
	var keys []*messageKey
	for _, name := range names {
		key, ok := parseMessageName(name)
		if !ok {
			continue
		}
		if source != transport.AnySource && key.source != source {
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return "", false
	}
	earliest := keys[0]
	for _, key := range keys[1:] {
		if key.unixNano < earliest.unixNano || (key.unixNano == earliest.unixNano && key.name < earliest.name) {
			earliest = key
		}
	}
	// the sender's lowest counter wins so clock skew cannot reorder one sender
	next := earliest
	for _, key := range keys {
		if key.source == next.source && key.counter < next.counter {
			next = key
		}
	}
	return next.name, true
}
