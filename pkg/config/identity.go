package config

// IdentityConfig describes the node key. The canonical peer id advertised in
// beacons is derived from its public half.
type IdentityConfig struct {
    Alg            string `mapstructure:"alg"`              // only ed25519
    PrivateKey     string `mapstructure:"private_key"`      // base64url(no padding) of raw private key bytes
    PrivateKeyFile string `mapstructure:"private_key_file"` // path to file containing base64 or raw bytes; created when missing
}
