package config

type yamlConfig struct {
	WorkdirRoot    string       `yaml:"workdir_root"`
	OverlayOpacity *int         `yaml:"overlay_opacity"`
	Settle         yamlSettle   `yaml:"settle"`
	Binarize       yamlBinarize `yaml:"binarize"`
	Service        yamlService  `yaml:"service"`
	Log            yamlLog      `yaml:"log"`
}

type yamlSettle struct {
	Attempts *int   `yaml:"attempts"`
	Backoff  string `yaml:"backoff"`
}

type yamlBinarize struct {
	Passes []yamlPass `yaml:"passes"`
}

type yamlPass struct {
	Alpha yamlCurve `yaml:"alpha"`
}

type yamlCurve struct {
	InBlack  *float64 `yaml:"in_black"`
	InWhite  *float64 `yaml:"in_white"`
	Gamma    *float64 `yaml:"gamma"`
	OutBlack *float64 `yaml:"out_black"`
	OutWhite *float64 `yaml:"out_white"`
}

type yamlService struct {
	Address         string `yaml:"address"`
	DiscoverTimeout string `yaml:"discover_timeout"`
}

type yamlLog struct {
	Dir   string `yaml:"dir"`
	Debug bool   `yaml:"debug"`
}
