package wire

import "github.com/xpra-org/xpra-wire/rencode"

// CipherParams is the encryption subset of a hello capability
// dictionary: mode, per-connection IV (CTR only), PBKDF2 salt, PBKDF2
// iteration count, and padding scheme, per spec.md §4.D.
type CipherParams struct {
	Mode       string
	IV         []byte
	KeySalt    []byte
	Iterations int64
	Digest     string
	Padding    string
}

// Capabilities is a typed accessor wrapper over the hello packet's
// capability dictionary (spec.md §3). The core only ever reads and
// writes capabilities through this type; raw rencode.Dict manipulation
// is confined here.
type Capabilities struct {
	dict *rencode.Dict
}

// NewCapabilities builds an empty, writable capability vector for an
// outgoing hello.
func NewCapabilities() *Capabilities {
	return &Capabilities{dict: rencode.NewDict()}
}

// CapabilitiesFromDict wraps an already-decoded dictionary, typically
// the argument of a received hello packet.
func CapabilitiesFromDict(d *rencode.Dict) *Capabilities {
	return &Capabilities{dict: d}
}

// Dict returns the underlying dictionary, for handing to frame.Writer.Emit.
func (c *Capabilities) Dict() *rencode.Dict { return c.dict }

// Version returns the "version" key.
func (c *Capabilities) Version() (string, bool) { return c.dict.GetText("version") }

// SetVersion sets the "version" key.
func (c *Capabilities) SetVersion(v string) { c.dict.SetText("version", v) }

// Aliases returns the "aliases" mapping, if present.
func (c *Capabilities) Aliases() (map[string]int64, bool) {
	v, ok := c.dict.Get(rencode.Text("aliases"))
	if !ok {
		return nil, false
	}
	inner, ok := v.(*rencode.Dict)
	if !ok {
		return nil, false
	}
	out := make(map[string]int64, inner.Len())
	inner.Range(func(k, val rencode.Value) bool {
		name, ok := k.(rencode.Text)
		if !ok {
			return true
		}
		n, ok := val.(rencode.Int)
		if !ok {
			return true
		}
		out[string(name)] = n.Small
		return true
	})
	return out, true
}

// SetAliases sets the "aliases" mapping.
func (c *Capabilities) SetAliases(m map[string]int64) {
	inner := rencode.NewDict()
	for name, alias := range m {
		inner.Set(rencode.Text(name), rencode.NewInt(alias))
	}
	c.dict.Set(rencode.Text("aliases"), inner)
}

// Cipher returns the cipher capability subset, if a cipher was
// negotiated in this hello.
func (c *Capabilities) Cipher() (CipherParams, bool) {
	mode, ok := c.dict.GetText("cipher.mode")
	if !ok {
		return CipherParams{}, false
	}
	p := CipherParams{Mode: mode}
	if iv, ok := c.dict.Get(rencode.Text("cipher.iv")); ok {
		if b, ok := iv.(rencode.Bytes); ok {
			p.IV = []byte(b)
		}
	}
	if salt, ok := c.dict.Get(rencode.Text("cipher.key_salt")); ok {
		if b, ok := salt.(rencode.Bytes); ok {
			p.KeySalt = []byte(b)
		}
	}
	if iter, ok := c.dict.Get(rencode.Text("cipher.key_stretch_iterations")); ok {
		if n, ok := iter.(rencode.Int); ok {
			p.Iterations = n.Small
		}
	}
	p.Digest, _ = c.dict.GetText("cipher.key_stretch_digest")
	p.Padding, _ = c.dict.GetText("cipher.padding")
	return p, true
}

// SetCipher installs the cipher capability subset.
func (c *Capabilities) SetCipher(p CipherParams) {
	c.dict.SetText("cipher.mode", p.Mode)
	if p.IV != nil {
		c.dict.Set(rencode.Text("cipher.iv"), rencode.Bytes(p.IV))
	}
	if p.KeySalt != nil {
		c.dict.Set(rencode.Text("cipher.key_salt"), rencode.Bytes(p.KeySalt))
	}
	c.dict.Set(rencode.Text("cipher.key_stretch_iterations"), rencode.NewInt(p.Iterations))
	if p.Digest != "" {
		c.dict.SetText("cipher.key_stretch_digest", p.Digest)
	}
	if p.Padding != "" {
		c.dict.SetText("cipher.padding", p.Padding)
	}
}

// DigestRequested returns the "digest" key used by a challenge packet
// to name the HMAC digest the initiator must answer with.
func (c *Capabilities) DigestRequested() (string, bool) { return c.dict.GetText("digest") }

// SetDigestRequested sets the "digest" key.
func (c *Capabilities) SetDigestRequested(d string) { c.dict.SetText("digest", d) }

// ChallengeSalt returns the random salt carried by a challenge packet.
func (c *Capabilities) ChallengeSalt() ([]byte, bool) {
	v, ok := c.dict.Get(rencode.Text("salt"))
	if !ok {
		return nil, false
	}
	b, ok := v.(rencode.Bytes)
	return []byte(b), ok
}

// SetChallengeSalt sets the "salt" key.
func (c *Capabilities) SetChallengeSalt(salt []byte) {
	c.dict.Set(rencode.Text("salt"), rencode.Bytes(salt))
}

// ChallengeResponse returns the "challenge_response" key carried by a
// hello sent in answer to a challenge.
func (c *Capabilities) ChallengeResponse() ([]byte, bool) {
	v, ok := c.dict.Get(rencode.Text("challenge_response"))
	if !ok {
		return nil, false
	}
	b, ok := v.(rencode.Bytes)
	return []byte(b), ok
}

// SetChallengeResponse sets the "challenge_response" key.
func (c *Capabilities) SetChallengeResponse(response []byte) {
	c.dict.Set(rencode.Text("challenge_response"), rencode.Bytes(response))
}

// CompressionOptins returns the set of compressor names this side
// advertised willingness to receive (e.g. "lz4", "brotli").
func (c *Capabilities) CompressionOptins() map[string]bool {
	out := map[string]bool{}
	for _, name := range []string{"lz4", "brotli"} {
		if v, ok := c.dict.Get(rencode.Text(name)); ok {
			if b, ok := v.(rencode.Bool); ok {
				out[name] = bool(b)
			}
		}
	}
	return out
}

// SetCompressionOptin advertises willingness to receive the named
// compressor.
func (c *Capabilities) SetCompressionOptin(name string, enabled bool) {
	c.dict.Set(rencode.Text(name), rencode.Bool(enabled))
}
