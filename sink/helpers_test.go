package sink

import (
	"time"

	"github.com/arloliu/go-lislink/link"
)

var baseTime = time.Date(2024, 3, 14, 9, 26, 53, 0, time.UTC)

func testMessage(instrumentID string, p link.Protocol, text string, offset time.Duration) link.Message {
	msg := link.NewMessage(instrumentID, p, []byte(text))
	msg.ReceivedAt = baseTime.Add(offset)

	return msg
}
