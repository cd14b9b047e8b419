package convo

// wellKnownPorts maps a handful of well-known server ports to the
// application-layer protocol spec.md §4.1 says a Conversation should be
// tagged with, when the lower of its two ports is one of them. This is a
// heuristic, not a
// dissection: it looks only at port numbers, never packet contents.
var wellKnownPorts = map[uint16]string{
	80:   "HTTP",
	8080: "HTTP",
	443:  "HTTPS",
	8443: "HTTPS",
	53:   "DNS",
	21:   "FTP",
	22:   "SSH",
	25:   "SMTP",
	587:  "SMTP",
	110:  "POP3",
	995:  "POP3",
	143:  "IMAP",
	993:  "IMAP",
}

// applicationProtocol returns the heuristically-guessed application protocol
// for a conversation between a and b, or "" if the lower-numbered port isn't
// well-known. Only the lower port is consulted, matching the original
// source's "server is the side with the lower port" convention: a
// well-known port on the numerically-higher side never wins.
func applicationProtocol(a, b Endpoint) string {
	lowPort := a.Port
	if b.Port < lowPort {
		lowPort = b.Port
	}
	return wellKnownPorts[lowPort]
}
