package messages

// ShotActivation is sent by the firing client the moment a shot is fired.
// The host authorizes it and holds a grant for Token.
type ShotActivation struct {
	Shot      uint32
	Archetype string
	Token     string
	Caller    string // Target the shot must never hit, usually the thrower
}

// SpawnData carries the predicted instance's spawn transform. It is sent
// once, when the predicted instance is created, and is consumed against the
// grant for Token; duplicates are dropped.
type SpawnData struct {
	Shot     uint32
	Token    string
	X, Y     float64
	Rotation float64
}

// SpawnCancelled tells the firing client its shot was rejected.
type SpawnCancelled struct {
	Shot   uint32
	Reason string
}

// ProjectileSpawned announces an authoritative instance. Shot is only set in
// the copy sent to the owner; everyone else receives 0.
type ProjectileSpawned struct {
	Instance      uint32
	Shot          uint32
	Owner         uint32
	Archetype     string
	X, Y          float64 // Spawn transform, before any fast-forward
	Rotation      float64
	FastForwardMs float64
	Caller        string
}

// DetonationInfo is broadcast once when the authoritative instance detonates.
type DetonationInfo struct {
	Instance         uint32
	X, Y             float64
	NormalX, NormalY float64
	Cause            uint8
	Target           string
}
