package config

// CategoryWeights orders command categories in help output and the README.
var CategoryWeights = map[string]int{
	"🕯️ Information": 0,
	"🎵 Music":        39,
	"🛠️ Maintenance": 60,
}
