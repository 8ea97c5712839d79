package wire

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"strings"

	"go.uber.org/zap"

	"github.com/xpra-org/xpra-wire/envelope"
	"github.com/xpra-org/xpra-wire/rencode"
)

// buildHello assembles this side's outgoing hello capability vector:
// version, the alias table this side has chosen for itself (if any),
// compression opt-ins, and — when no cipher is negotiated yet and a
// pre-shared key is configured — the cipher capability subset this
// side is offering.
func (c *Connection) buildHello() *Capabilities {
	caps := NewCapabilities()
	caps.SetVersion(c.cfg.protocolVersion)
	if c.aliasesIn.Installed() {
		m := map[string]int64{}
		// AliasTable has no direct export; rebuild from Name/Alias via
		// the map captured at SetAliasesIn time.
		for name, alias := range c.localAliasSnapshot {
			m[name] = alias
		}
		caps.SetAliases(m)
	}
	for name, enabled := range c.cfg.compressionOptins {
		caps.SetCompressionOptin(name, enabled)
	}
	if c.cfg.offerCipher && c.cipherLoad() == nil {
		offer := c.cfg.cipherOffer
		if err := c.installOwnCipherOffer(&offer); err != nil {
			c.logger.Warn("failed to install the cipher this side is offering", zap.Error(err))
		} else {
			caps.SetCipher(offer)
		}
	}
	return caps
}

// installOwnCipherOffer derives and installs the Cipher this side is
// about to advertise in its own hello, so the offering side is ready
// to seal/open traffic under it as soon as the hello is sent, the same
// moment the peer will be ready once it parses the offer (spec.md §4.D:
// the cipher a hello advertises governs that hello's sender's own
// outgoing traffic from the moment it is sent).
func (c *Connection) installOwnCipherOffer(p *CipherParams) error {
	digest := envelope.DigestSHA256
	if p.Digest == "sha1" {
		digest = envelope.DigestSHA1
	}
	iterations := int(p.Iterations)
	if iterations <= 0 {
		iterations = 1000
	}
	key, err := envelope.DeriveKey(c.cfg.password, p.KeySalt, iterations, 32, digest)
	if err != nil {
		return err
	}
	mode, err := parseCipherMode(p.Mode)
	if err != nil {
		return err
	}
	ci, err := envelope.New(mode, key, c.cfg.isInitiator)
	if err != nil {
		return err
	}
	if ivSource, ok := ci.(interface{ IV() []byte }); ok {
		p.IV = ivSource.IV()
	}
	c.cipherStore(ci)
	return nil
}

// handleHandshakePacket processes a hello or challenge packet received
// before Established, driving the state machine described in
// spec.md §4.G. Structurally modelled on the teacher's Upgrade()
// function: numbered validation steps, one sentinel error per failed
// step, early return.
func (c *Connection) handleHandshakePacket(name string, args Args) error {
	switch name {
	case "hello":
		return c.handleHello(args)
	case "challenge":
		return c.handleChallenge(args)
	default:
		c.logger.Debug("packet received before handshake completed, discarding",
			zap.String("type", name), zap.String("state", c.State().String()))
		return nil
	}
}

func (c *Connection) handleHello(args Args) error {
	if args.Len() == 0 {
		return fmt.Errorf("%w: hello missing capability dict", ErrMalformedPayload)
	}
	dict, err := args.Dict(0)
	if err != nil {
		return err
	}
	peerCaps := CapabilitiesFromDict(dict)

	if c.State() == Challenged {
		return c.handleHelloChallengeResponse(peerCaps)
	}

	if c.cfg.requireAuth && c.challengeAttempts == 0 {
		return c.sendChallenge()
	}

	if aliases, ok := peerCaps.Aliases(); ok {
		if err := c.aliasesOut.Install(aliases); err != nil {
			c.logger.Debug("peer re-sent aliases, ignoring second install", zap.Error(err))
		}
	}
	if params, ok := peerCaps.Cipher(); ok && c.cfg.password != "" {
		if err := c.installCipherFromPeer(params); err != nil {
			return err
		}
	}
	c.compressors.RestrictOutgoing(peerCaps.CompressionOptins())
	c.setState(Established)
	return nil
}

func (c *Connection) sendChallenge() error {
	salt, err := randomSalt(32)
	if err != nil {
		return err
	}
	c.challengeSalt = salt
	caps := NewCapabilities()
	caps.SetChallengeSalt(salt)
	caps.SetDigestRequested(c.cfg.challengeDigest)
	c.setState(Challenged)
	return c.queue.push(outboundPacket{
		typeName: "challenge",
		args:     []rencode.Value{caps.Dict()},
		priority: PriorityUrgent,
	})
}

func (c *Connection) handleChallenge(args Args) error {
	if args.Len() == 0 {
		return fmt.Errorf("%w: challenge missing capability dict", ErrMalformedPayload)
	}
	dict, err := args.Dict(0)
	if err != nil {
		return err
	}
	caps := CapabilitiesFromDict(dict)
	salt, ok := caps.ChallengeSalt()
	if !ok {
		return fmt.Errorf("%w: challenge missing salt", ErrMalformedPayload)
	}
	digest, _ := caps.DigestRequested()

	response, err := computeChallengeResponse(digest, c.cfg.password, salt)
	if err != nil {
		return err
	}

	reply := c.buildHello()
	reply.SetChallengeResponse(response)
	if c.State() != Established {
		c.setState(Challenged)
	}
	return c.queue.push(outboundPacket{
		typeName: "hello",
		args:     []rencode.Value{reply.Dict()},
		priority: PriorityUrgent,
	})
}

func (c *Connection) handleHelloChallengeResponse(peerCaps *Capabilities) error {
	response, ok := peerCaps.ChallengeResponse()
	if !ok {
		return fmt.Errorf("%w: expected hello.challenge_response", ErrAuthFailed)
	}
	want, err := computeChallengeResponse(c.cfg.challengeDigest, c.cfg.password, c.challengeSalt)
	if err != nil {
		return err
	}
	if !hmac.Equal(response, want) {
		c.challengeAttempts++
		if c.challengeAttempts > c.cfg.handshakeRetryLimit {
			return ErrAuthFailed
		}
		return c.sendChallenge()
	}
	if aliases, ok := peerCaps.Aliases(); ok {
		_ = c.aliasesOut.Install(aliases)
	}
	c.compressors.RestrictOutgoing(peerCaps.CompressionOptins())
	c.setState(Established)
	return nil
}

// computeChallengeResponse computes HMAC(password, salt) under the
// digest named by a challenge packet (spec.md §4.G: "MD5 (legacy) or a
// SHA-family digest as advertised in the challenge").
func computeChallengeResponse(digest, password string, salt []byte) ([]byte, error) {
	newHash, err := digestHash(digest)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(newHash, []byte(password))
	mac.Write(salt)
	return mac.Sum(nil), nil
}

func digestHash(digest string) (func() hash.Hash, error) {
	algo := digest
	if idx := strings.LastIndex(digest, "+"); idx >= 0 {
		algo = digest[idx+1:]
	}
	switch strings.ToLower(algo) {
	case "md5":
		return md5.New, nil
	case "sha1", "":
		return sha1.New, nil
	case "sha256":
		return sha256.New, nil
	default:
		return nil, fmt.Errorf("%w: unsupported challenge digest %q", ErrAuthFailed, digest)
	}
}
