package backends

// Usage restricts which programs should accept a given backend.
type Usage uint8

const (
	// UsageServer marks backends available to the HTTP auth server (didauth serve).
	UsageServer Usage = 1 << iota
	// UsageDaemon marks backends available to the gRPC registry daemon (didauth-registryd).
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }
