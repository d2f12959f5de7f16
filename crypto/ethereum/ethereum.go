// Package ethereum provides secp256k1 signing keys and EIP-191 personal-sign
// helpers. The coordinator uses them for the login flow (recovering the voter
// address from a signed message) and for the service account that submits
// membership transactions.
package ethereum

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size in bytes of an ECDSA signature with recovery id.
const SignatureLength = 65

// SignKeys represents a secp256k1 keypair used for Ethereum-style signing.
type SignKeys struct {
	Public  *ecdsa.PublicKey
	Private *ecdsa.PrivateKey
}

// NewSignKeys creates an empty SignKeys instance.
func NewSignKeys() *SignKeys {
	return &SignKeys{}
}

// Generate creates a fresh random keypair.
func (k *SignKeys) Generate() error {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return err
	}
	k.Private = key
	k.Public = &key.PublicKey
	return nil
}

// AddHexKey imports a private key from its hexadecimal representation.
func (k *SignKeys) AddHexKey(privHex string) error {
	key, err := ethcrypto.HexToECDSA(trimHex(privHex))
	if err != nil {
		return err
	}
	k.Private = key
	k.Public = &key.PublicKey
	return nil
}

// HexString returns the compressed public key and the private key as
// hexadecimal strings.
func (k *SignKeys) HexString() (string, string) {
	pub := fmt.Sprintf("%x", k.PublicKey())
	priv := fmt.Sprintf("%x", ethcrypto.FromECDSA(k.Private))
	return pub, priv
}

// PublicKey returns the compressed public key.
func (k *SignKeys) PublicKey() []byte {
	return ethcrypto.CompressPubkey(k.Public)
}

// Address returns the Ethereum address derived from the public key.
func (k *SignKeys) Address() common.Address {
	return ethcrypto.PubkeyToAddress(*k.Public)
}

// AddressString returns the checksummed address as a string.
func (k *SignKeys) AddressString() string {
	return k.Address().String()
}

// SignEthereum signs message using the EIP-191 personal-sign scheme (the
// message is prefixed before hashing, as wallets do).
func (k *SignKeys) SignEthereum(message []byte) ([]byte, error) {
	if k.Private == nil {
		return nil, fmt.Errorf("no private key available")
	}
	return ethcrypto.Sign(HashEthereumMessage(message), k.Private)
}

// HashRaw computes the keccak256 hash of data.
func HashRaw(data []byte) []byte {
	return ethcrypto.Keccak256(data)
}

// HashEthereumMessage computes the hash signed by wallets for personal-sign:
// keccak256("\x19Ethereum Signed Message:\n" + len(message) + message).
func HashEthereumMessage(message []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	return ethcrypto.Keccak256([]byte(prefix), message)
}

// AddrFromSignature recovers the address that produced an EIP-191 signature
// over message.
func AddrFromSignature(message, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(signature))
	}
	// Wallets encode the recovery id as 27/28; go-ethereum expects 0/1.
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(HashEthereumMessage(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("cannot recover public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// AddrFromPublicKey converts a compressed public key to an address.
func AddrFromPublicKey(pub []byte) (common.Address, error) {
	pubKey, err := ethcrypto.DecompressPubkey(pub)
	if err != nil {
		return common.Address{}, fmt.Errorf("cannot decompress public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pubKey), nil
}

func trimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
