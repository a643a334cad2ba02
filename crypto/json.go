package crypto

import (
	"encoding/json"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// KeyPair's and MintKeySet's JSON encodings exist so storage/bolt can
// persist derived key material; the wire shape mirrors the teacher's
// custom (de)serializers for the same reason theirs does — a
// secp256k1 key pair has no default JSON mapping worth keeping.

type keyPairJSON struct {
	PrivateKey []byte `json:"private_key"`
	PublicKey  []byte `json:"public_key"`
}

func (kp KeyPair) MarshalJSON() ([]byte, error) {
	var priv []byte
	if kp.PrivateKey != nil {
		priv = kp.PrivateKey.Serialize()
	}
	return json.Marshal(keyPairJSON{
		PrivateKey: priv,
		PublicKey:  kp.PublicKey.SerializeCompressed(),
	})
}

func (kp *KeyPair) UnmarshalJSON(data []byte) error {
	var aux keyPairJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	kp.PrivateKey = secp256k1.PrivKeyFromBytes(aux.PrivateKey)
	pub, err := secp256k1.ParsePubKey(aux.PublicKey)
	if err != nil {
		return err
	}
	kp.PublicKey = pub
	return nil
}

type mintKeySetJSON struct {
	Keys map[uint64]KeyPair `json:"keys"`
}

func (ks MintKeySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(mintKeySetJSON{Keys: ks.Keys})
}

func (ks *MintKeySet) UnmarshalJSON(data []byte) error {
	var aux mintKeySetJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	ks.Keys = aux.Keys
	return nil
}
