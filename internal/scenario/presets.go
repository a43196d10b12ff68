package scenario

import "time"

// DefaultPreset はプリセット未指定時に使うシナリオ名
const DefaultPreset = "smoke"

// SmokeScenario は動作確認用の小規模シナリオを返す
func SmokeScenario() Config {
	config := baseConfig()
	config.Name = "smoke"
	config.Description = "Small smoke run against the banking API"
	config.Users = 5
	config.SpawnRate = 1
	config.Duration = 30 * time.Second
	return config
}

// BaselineScenario は平常時の負荷を想定したシナリオを返す
func BaselineScenario() Config {
	config := baseConfig()
	config.Name = "baseline"
	config.Description = "Steady baseline load"
	config.Users = 10
	config.SpawnRate = 2
	config.Duration = 1 * time.Minute
	return config
}

// PeakScenario はピーク時の負荷を想定したシナリオを返す
func PeakScenario() Config {
	config := baseConfig()
	config.Name = "peak"
	config.Description = "Peak hour load with many concurrent users"
	config.Users = 50
	config.SpawnRate = 5
	config.Duration = 3 * time.Minute
	return config
}

// SoakScenario は長時間の耐久シナリオを返す
func SoakScenario() Config {
	config := baseConfig()
	config.Name = "soak"
	config.Description = "Long running soak test"
	config.Users = 20
	config.SpawnRate = 2
	config.Duration = 15 * time.Minute
	return config
}

// QuickScenario は短時間での動作確認用シナリオを返す
func QuickScenario() Config {
	config := baseConfig()
	config.Name = "quick"
	config.Description = "Quick test for verification"
	config.Users = 2
	config.SpawnRate = 2
	config.Duration = 10 * time.Second
	return config
}

var presets = map[string]func() Config{
	"smoke":    SmokeScenario,
	"baseline": BaselineScenario,
	"peak":     PeakScenario,
	"soak":     SoakScenario,
	"quick":    QuickScenario,
}

// GetPreset は名前からプリセットシナリオを取得する
func GetPreset(name string) (Config, bool) {
	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	return []string{"smoke", "baseline", "peak", "soak", "quick"}
}
