package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

const (
	exchangeDomainName    = "Polymarket CTF Exchange"
	exchangeDomainVersion = "1"
)

var (
	domainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId)"),
	)
	orderTypeHash = ethcrypto.Keccak256(
		[]byte("Order(uint256 salt,address maker,address signer,address taker,uint256 tokenId,uint256 makerAmount,uint256 takerAmount,uint256 expiration,uint256 nonce,uint256 feeRateBps,uint8 side,uint8 signatureType)"),
	)
)

// Order sides.
const (
	SideBuy  = 0
	SideSell = 1
)

// Order is a Polymarket exchange order. Amounts and ids are base-10 strings
// so they survive JSON round trips without losing precision.
type Order struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          int    `json:"side"`
	SignatureType int    `json:"signatureType"`
}

// SignedOrder is an order with its EIP-712 digest and signature.
type SignedOrder struct {
	Order     Order  `json:"order"`
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
}

// Signer signs exchange orders with a secp256k1 key.
type Signer struct {
	key       *ecdsa.PrivateKey
	address   common.Address
	chainID   int64
	domainSep []byte
}

// NewSigner creates a Signer from a hex private key for chainID
// (137 for Polygon mainnet).
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		domainSep: ethcrypto.Keccak256(concatBytes(
			domainTypeHash,
			ethcrypto.Keccak256([]byte(exchangeDomainName)),
			ethcrypto.Keccak256([]byte(exchangeDomainVersion)),
			word(big.NewInt(chainID)),
		)),
	}, nil
}

// Address returns the signer's wallet address.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignOrder computes the EIP-712 digest of o and signs it.
func (s *Signer) SignOrder(o Order) (SignedOrder, error) {
	structHash, err := orderStructHash(o)
	if err != nil {
		return SignedOrder{}, err
	}
	digest := ethcrypto.Keccak256(concatBytes([]byte{0x19, 0x01}, s.domainSep, structHash))

	sig, err := ethcrypto.Sign(digest, s.key)
	if err != nil {
		return SignedOrder{}, fmt.Errorf("crypto/signer: sign order: %w: %w", domain.ErrSigningFailed, err)
	}
	// v in {27,28}
	if sig[64] < 27 {
		sig[64] += 27
	}

	return SignedOrder{
		Order:     o,
		Hash:      "0x" + hex.EncodeToString(digest),
		Signature: "0x" + hex.EncodeToString(sig),
	}, nil
}

// RecoverOrderSigner returns the address that produced so's signature.
func RecoverOrderSigner(so SignedOrder) (common.Address, error) {
	digest, err := hex.DecodeString(strings.TrimPrefix(so.Hash, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: decode hash: %w", err)
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(so.Signature, "0x"))
	if err != nil || len(sig) != 65 {
		return common.Address{}, fmt.Errorf("crypto/signer: malformed signature")
	}
	sig[64] -= 27
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: recover: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

func orderStructHash(o Order) ([]byte, error) {
	fields := []struct {
		name, val string
	}{
		{"salt", o.Salt},
		{"tokenId", o.TokenID},
		{"makerAmount", o.MakerAmount},
		{"takerAmount", o.TakerAmount},
		{"expiration", o.Expiration},
		{"nonce", o.Nonce},
		{"feeRateBps", o.FeeRateBps},
	}
	nums := make(map[string]*big.Int, len(fields))
	for _, f := range fields {
		n, ok := new(big.Int).SetString(f.val, 10)
		if !ok {
			return nil, fmt.Errorf("crypto/signer: invalid %s %q", f.name, f.val)
		}
		nums[f.name] = n
	}

	return ethcrypto.Keccak256(concatBytes(
		orderTypeHash,
		word(nums["salt"]),
		address(o.Maker),
		address(o.Signer),
		address(o.Taker),
		word(nums["tokenId"]),
		word(nums["makerAmount"]),
		word(nums["takerAmount"]),
		word(nums["expiration"]),
		word(nums["nonce"]),
		word(nums["feeRateBps"]),
		word(big.NewInt(int64(o.Side))),
		word(big.NewInt(int64(o.SignatureType))),
	)), nil
}

func address(hexAddr string) []byte {
	return common.LeftPadBytes(common.HexToAddress(hexAddr).Bytes(), 32)
}

// word left-pads n to a 32-byte big-endian ABI word.
func word(n *big.Int) []byte {
	return common.LeftPadBytes(n.Bytes(), 32)
}

func concatBytes(parts ...[]byte) []byte {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	buf := make([]byte, 0, total)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}
