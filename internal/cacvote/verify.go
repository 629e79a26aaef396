package cacvote

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// Verify reports whether obj's signature is valid over its payload under
// the leaf certificate in Certificates, and that leaf certificate chains
// to trustRoots. Certificates holds one or more PEM-encoded certificates
// concatenated together: the first block is the leaf (the signer), any
// remaining blocks are intermediates to help build the chain to
// trustRoots. A chain that does not verify, or a signature that is invalid
// or malformed, returns (false, nil); a certificate block that does not
// parse, no certificate at all, or an unsupported key algorithm returns
// (false, err) so a caller can distinguish "rejected" from "couldn't even
// parse this."
func Verify(obj SignedObject, trustRoots *x509.CertPool) (bool, error) {
	leaf, intermediates, err := parseCertificateChain(obj.Certificates)
	if err != nil {
		return false, fmt.Errorf("parsing certificate chain: %w", err)
	}

	if _, err := leaf.Verify(x509.VerifyOptions{
		Roots:         trustRoots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}); err != nil {
		return false, nil
	}

	valid, err := verifySignature(leaf.PublicKey, obj.Payload, obj.Signature)
	if err != nil {
		return false, fmt.Errorf("verifying signature: %w", err)
	}
	return valid, nil
}

func parseCertificateChain(raw []byte) (leaf *x509.Certificate, intermediates *x509.CertPool, err error) {
	intermediates = x509.NewCertPool()
	rest := raw
	first := true
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, nil, err
		}
		if first {
			leaf = cert
			first = false
			continue
		}
		intermediates.AddCert(cert)
	}
	if leaf == nil {
		return nil, nil, fmt.Errorf("no PEM-encoded certificate found")
	}
	return leaf, intermediates, nil
}

// verifySignature checks signature over payload under pub, dispatching on
// the leaf certificate's public key algorithm: ECDSA and RSA-PSS sign a
// SHA-256 digest of the payload; Ed25519 signs the payload directly, since
// it hashes internally.
func verifySignature(pub any, payload, signature []byte) (bool, error) {
	switch key := pub.(type) {
	case *ecdsa.PublicKey:
		digest := sha256.Sum256(payload)
		return ecdsa.VerifyASN1(key, digest[:], signature), nil
	case *rsa.PublicKey:
		digest := sha256.Sum256(payload)
		err := rsa.VerifyPSS(key, crypto.SHA256, digest[:], signature, nil)
		return err == nil, nil
	case ed25519.PublicKey:
		return ed25519.Verify(key, payload, signature), nil
	default:
		return false, fmt.Errorf("unsupported public key algorithm %T", pub)
	}
}
