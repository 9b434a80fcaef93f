package securesession

// NoopAdapter is a pass-through Adapter used before pair-verify has
// established a real one, and in tests. It never reports a session as
// secured on its own; State.Kind still governs IsSecured.
type NoopAdapter struct{}

func (NoopAdapter) Decrypt(state *State, io []byte) ([]byte, error) { return io, nil }
func (NoopAdapter) Encrypt(state *State, io []byte) ([]byte, error) { return io, nil }
func (NoopAdapter) EncryptedSize(plaintextSize int) int             { return plaintextSize }
func (NoopAdapter) Close(state *State) error                        { return nil }

var _ Adapter = NoopAdapter{}
