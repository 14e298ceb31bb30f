package helpers

import tele "gopkg.in/telebot.v4"

const (
	sentKey = "responses_sent"
	kbKey   = "responses_kb"
)

func noteSent(c tele.Context, kb bool) {
	n, _ := c.Get(sentKey).(int)
	c.Set(sentKey, n+1)
	if kb {
		c.Set(kbKey, true)
	}
}

// Counters reports how many responses the handler produced for the current
// update and whether any carried a keyboard.
func Counters(c tele.Context) (sent int, kb bool) {
	sent, _ = c.Get(sentKey).(int)
	kb, _ = c.Get(kbKey).(bool)
	return sent, kb
}
