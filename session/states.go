package session

// State is a checkout session's position in the finite-state protocol.
type State string

const (
	StateIdle             State = "idle"
	StateQuoteReady       State = "quote_ready"
	StateWalletConnecting State = "wallet_connecting"
	StateWalletReady      State = "wallet_ready"
	StateAwaitingConfirm  State = "awaiting_confirm"
	StatePending          State = "pending"
	StateConfirmed        State = "confirmed"
	StateFailed           State = "failed"
	StateCancelled        State = "cancelled"
)

func (s State) String() string {
	return string(s)
}

// Terminal reports whether the session is finished. Failed is terminal
// but may be re-entered at QuoteReady through Retry.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateFailed || s == StateCancelled
}
