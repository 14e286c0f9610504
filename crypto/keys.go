package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Prefix is the human-readable bech32 prefix used for all finvoice addresses.
const Prefix = "fin"

// AddressLength is the canonical byte length of a ledger address.
const AddressLength = 20

// Address represents a 20-byte ledger address rendered as bech32.
type Address struct {
	bytes [AddressLength]byte
}

func NewAddress(b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressLength, len(b))
	}
	var a Address
	copy(a.bytes[:], b)
	return a, nil
}

// MustNewAddress panics when the raw bytes are not a valid address. Reserved
// for addresses the caller has already derived or validated.
func MustNewAddress(b []byte) Address {
	a, err := NewAddress(b)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(Prefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a.bytes[:])
	return out
}

// Raw returns the fixed-size form used as state keys throughout the ledger.
func (a Address) Raw() [AddressLength]byte {
	return a.bytes
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != Prefix {
		return Address{}, fmt.Errorf("unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return NewAddress(conv)
}

// Derive computes the deterministic address of a module-owned account from a
// fixed tag plus seed material. The ledger and its callers compute the same
// address without a lookup table, so derived accounts act as content-addressed
// keys (vaults, approver records, ownership mints).
func Derive(tag string, seeds ...[]byte) [AddressLength]byte {
	data := []byte(tag)
	for _, seed := range seeds {
		data = append(data, seed...)
	}
	sum := ethcrypto.Keccak256(data)
	var addr [AddressLength]byte
	copy(addr[:], sum[12:])
	return addr
}

// DeriveID computes a 32-byte deterministic identifier from a tag and seed
// material. Used for contract identifiers, where collisions across distinct
// definitions must be cryptographically negligible.
func DeriveID(tag string, seeds ...[]byte) [32]byte {
	data := []byte(tag)
	for _, seed := range seeds {
		data = append(data, seed...)
	}
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256(data))
	return id
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return ethcrypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

func (k *PublicKey) Address() Address {
	addrBytes := ethcrypto.PubkeyToAddress(*k.PublicKey).Bytes()
	return MustNewAddress(addrBytes)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
