package catalog

import (
	"io"

	yaml "gopkg.in/yaml.v2"
)

type OriginConfig struct {
	Key      string `yaml:"key"`
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
}

type Config struct {
	Origins []OriginConfig `yaml:"origins"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = yaml.Unmarshal(buf, &cfg)

	return cfg, err
}
