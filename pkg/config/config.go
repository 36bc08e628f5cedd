// Package config loads meter connection profiles from ini files and
// assembles clients from them.
package config

import (
	"encoding/hex"
	"time"

	"gopkg.in/ini.v1"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/client"
	"github.com/openmetering/godlms/pkg/hdlc"
)

// Profile is one meter connection: transport, session layer and
// security material.
type Profile struct {
	// transport
	Transport string `ini:"transport"` // tcp, udp or serial
	Host      string `ini:"host"`
	Port      int    `ini:"port"`
	Device    string `ini:"device"`
	Baud      int    `ini:"baud"`

	// session
	Session   string `ini:"session"` // wrapper or hdlc
	ClientSAP uint16 `ini:"client_sap"`
	ServerSAP uint16 `ini:"server_sap"`

	// hdlc link parameters
	MaxInfoTx uint16 `ini:"max_info_tx"`
	MaxInfoRx uint16 `ini:"max_info_rx"`
	WindowTx  uint16 `ini:"window_tx"`
	WindowRx  uint16 `ini:"window_rx"`

	// security
	Authentication    string `ini:"authentication"` // none, low or hls5
	Password          string `ini:"password"`
	Ciphered          bool   `ini:"ciphered"`
	SystemTitle       string `ini:"system_title"`       // hex
	EncryptionKey     string `ini:"encryption_key"`     // hex
	AuthenticationKey string `ini:"authentication_key"` // hex
	MasterKey         string `ini:"master_key"`         // hex

	TimeoutSeconds int `ini:"timeout"`
}

// Load reads a profile by section name; the unnamed default section
// works too.
func Load(path, section string) (*Profile, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, dlms.WrapError(dlms.KindInvalidData, "profile "+path, err)
	}
	profile := &Profile{
		Transport: "tcp",
		Port:      4059,
		Session:   "wrapper",
		ClientSAP: 0x10,
		ServerSAP: 1,
		Baud:      9600,
	}
	if err := file.Section(section).MapTo(profile); err != nil {
		return nil, dlms.WrapError(dlms.KindInvalidData, "profile "+path, err)
	}
	return profile, nil
}

func (p *Profile) hexField(name, value string, size int) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, dlms.WrapError(dlms.KindInvalidData, "profile "+name, err)
	}
	if size > 0 && len(raw) != size {
		return nil, dlms.Errorf(dlms.KindInvalidData, "profile %s: %d bytes, need %d", name, len(raw), size)
	}
	return raw, nil
}

// Settings converts the security section into client settings.
func (p *Profile) Settings() (client.Settings, error) {
	settings := client.Settings{Ciphered: p.Ciphered}
	switch p.Authentication {
	case "", "none":
		settings.Authentication = client.AuthNone
	case "low":
		settings.Authentication = client.AuthLow
		settings.Password = []byte(p.Password)
	case "hls5":
		settings.Authentication = client.AuthHighGMAC
	default:
		return client.Settings{}, dlms.Errorf(dlms.KindInvalidData, "profile authentication %q", p.Authentication)
	}
	var err error
	if settings.SystemTitle, err = p.hexField("system_title", p.SystemTitle, 8); err != nil {
		return client.Settings{}, err
	}
	if settings.EncryptionKey, err = p.hexField("encryption_key", p.EncryptionKey, 16); err != nil {
		return client.Settings{}, err
	}
	if settings.AuthenticationKey, err = p.hexField("authentication_key", p.AuthenticationKey, 16); err != nil {
		return client.Settings{}, err
	}
	if settings.MasterKey, err = p.hexField("master_key", p.MasterKey, 16); err != nil {
		return client.Settings{}, err
	}
	if p.TimeoutSeconds > 0 {
		settings.ResponseTimeout = time.Duration(p.TimeoutSeconds) * time.Second
	}
	return settings, nil
}

// Build assembles an unassociated client from the profile.
func (p *Profile) Build() (*client.Association, error) {
	settings, err := p.Settings()
	if err != nil {
		return nil, err
	}
	builder := client.NewBuilder().Security(settings)

	switch p.Transport {
	case "tcp":
		builder.TCP(p.Host, p.Port)
	case "udp":
		builder.UDP(p.Host, p.Port)
	case "serial":
		builder.Serial(p.Device, p.Baud)
	default:
		return nil, dlms.Errorf(dlms.KindInvalidData, "profile transport %q", p.Transport)
	}

	switch p.Session {
	case "wrapper":
		builder.Wrapper(p.ClientSAP, p.ServerSAP)
	case "hdlc":
		local, err := hdlc.NewAddress(uint32(p.ClientSAP), 1)
		if err != nil {
			return nil, err
		}
		remote, err := hdlc.NewAddress(uint32(p.ServerSAP), 1)
		if err != nil {
			return nil, err
		}
		params := hdlc.DefaultParameters()
		if p.MaxInfoTx != 0 {
			params.MaxInfoLengthTx = p.MaxInfoTx
		}
		if p.MaxInfoRx != 0 {
			params.MaxInfoLengthRx = p.MaxInfoRx
		}
		if p.WindowTx != 0 {
			params.WindowSizeTx = uint8(p.WindowTx)
		}
		if p.WindowRx != 0 {
			params.WindowSizeRx = uint8(p.WindowRx)
		}
		builder.HDLC(local, remote, params)
	default:
		return nil, dlms.Errorf(dlms.KindInvalidData, "profile session %q", p.Session)
	}
	return builder.Build()
}
