package engine

import (
	"fmt"
	"strings"
)

// Reply copy. The bot speaks in character even when refusing.
const (
	msgPfpRepeat = "Only one pfp token per user fren, need to keep that rarity high.\n\nHit up my gloinked creator DiviFlyy if you need a fresh one!"
	msgNoPfp     = "Sorry fren, I couldn't find your profile picture!"
	msgPfpFailed = "Sorry fren, I had trouble processing your profile picture! Make sure it's less than 5MB and try again."
	msgLowScore  = "Sorry fren, you need a higher Neynar score"
	msgCooldown  = "I can only glank out a fresh banger for you once a day. Radiate some new casts and try again tomorrow!"
	msgApology   = "Sorry fren, something went wrong while processing your request!"
)

func deployRequest(name, ticker string) string {
	return fmt.Sprintf("@clanker create this token:\nName: %s\nTicker: %s", name, strings.ToUpper(ticker))
}

func pfpTokenMessage(name, ticker string) string {
	return fmt.Sprintf("Woah fren, that's one glankster pfp!\nI'll immortalize it as a clanker token:\n\n%s", deployRequest(name, ticker))
}

func ownImageMessage(name, ticker string) string {
	return fmt.Sprintf("That is one glonkerized image fren.\nHere's a token based on it:\n\n%s", deployRequest(name, ticker))
}

func otherImageMessage(owner, name, ticker string) string {
	return fmt.Sprintf("Woah @%s dropped a banger image!\nHere's a token based on it:\n\n%s", owner, deployRequest(name, ticker))
}

func taggedUserMessage(tagged, name, ticker string) string {
	return fmt.Sprintf("Ah, you want me to peep on other people's profiles?\nAlright fren, here's a token based on @%s's vibe:\n\n%s", tagged, deployRequest(name, ticker))
}

func parentPostMessage(name, ticker string) string {
	return fmt.Sprintf("This cast is maximum gloinked fren.\nHere's a token based on it:\n\n%s", deployRequest(name, ticker))
}

func selfHistoryMessage(persona, name, ticker string) string {
	return fmt.Sprintf("%sI scrolled through your casts... they're pretty glonky.\nHere's a token based on your vibe:\n\n%s", persona, deployRequest(name, ticker))
}
