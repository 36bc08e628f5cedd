package main

import (
	"encoding/hex"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/server"
)

// serverConfig is the YAML shape of the meter simulator.
type serverConfig struct {
	Listen            string         `yaml:"listen"`
	SystemTitle       string         `yaml:"system_title"`
	Password          string         `yaml:"password"`
	EncryptionKey     string         `yaml:"encryption_key"`
	AuthenticationKey string         `yaml:"authentication_key"`
	MaxPDUSize        uint16         `yaml:"max_pdu_size"`
	Objects           []objectConfig `yaml:"objects"`
}

type objectConfig struct {
	Class    uint16 `yaml:"class"`
	Obis     string `yaml:"obis"`
	Type     string `yaml:"type"`
	Value    string `yaml:"value"`
	Writable bool   `yaml:"writable"`
	Scaler   int8   `yaml:"scaler"`
	Unit     uint8  `yaml:"unit"`
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run a meter simulator",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Required: true, Usage: "server configuration (yaml)"},
		},
		Action: func(c *cli.Context) error {
			raw, err := os.ReadFile(c.String("config"))
			if err != nil {
				return err
			}
			var cfg serverConfig
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return err
			}
			if cfg.Listen == "" {
				cfg.Listen = ":4059"
			}

			registry := server.NewRegistry()
			for _, obj := range cfg.Objects {
				if err := registerObject(registry, obj); err != nil {
					return err
				}
			}
			log.WithField("objects", registry.Len()).Info("registry loaded")

			serverCfg := server.Config{
				Password:   []byte(cfg.Password),
				MaxPDUSize: cfg.MaxPDUSize,
			}
			if serverCfg.SystemTitle, err = hexOrNil(cfg.SystemTitle); err != nil {
				return err
			}
			if serverCfg.EncryptionKey, err = hexOrNil(cfg.EncryptionKey); err != nil {
				return err
			}
			if serverCfg.AuthenticationKey, err = hexOrNil(cfg.AuthenticationKey); err != nil {
				return err
			}
			return server.NewServer(cfg.Listen, registry, serverCfg).Serve()
		},
	}
}

func registerObject(registry *server.Registry, obj objectConfig) error {
	obis, err := dlms.ParseObisCode(obj.Obis)
	if err != nil {
		return err
	}
	value, err := parseValue(obj.Type, obj.Value)
	if err != nil {
		return fmt.Errorf("object %s: %w", obj.Obis, err)
	}
	switch obj.Class {
	case server.ClassData:
		data := server.NewDataObject(obis, value)
		data.Writable = obj.Writable
		registry.Register(obj.Class, obis, data)
	case server.ClassRegister:
		registry.Register(obj.Class, obis,
			server.NewRegisterObject(obis, value, server.ScalerUnit{Scaler: obj.Scaler, Unit: obj.Unit}))
	default:
		return fmt.Errorf("object %s: unsupported class %d", obj.Obis, obj.Class)
	}
	return nil
}

func hexOrNil(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}
