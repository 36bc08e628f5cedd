// Command dlms is the front-end of the stack: a meter-reading
// client (get, set, action) driven by ini connection profiles, and a
// meter simulator (serve) driven by a YAML object list.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/axdr"
	"github.com/openmetering/godlms/pkg/client"
	"github.com/openmetering/godlms/pkg/config"
)

func main() {
	app := &cli.App{
		Name:  "dlms",
		Usage: "DLMS/COSEM meter client and simulator",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "panic, fatal, error, warn, info, debug, trace"},
		},
		Before: func(c *cli.Context) error {
			level, err := log.ParseLevel(c.String("log-level"))
			if err != nil {
				return err
			}
			log.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			getCommand(),
			setCommand(),
			actionCommand(),
			serveCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func profileFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "profile", Aliases: []string{"p"}, Required: true, Usage: "connection profile (ini)"},
		&cli.StringFlag{Name: "section", Value: "", Usage: "profile section"},
		&cli.UintFlag{Name: "class", Required: true, Usage: "COSEM class id"},
		&cli.StringFlag{Name: "obis", Required: true, Usage: "OBIS code, e.g. 1.0.1.8.0.255"},
	}
}

func connect(c *cli.Context) (*client.Association, error) {
	profile, err := config.Load(c.String("profile"), c.String("section"))
	if err != nil {
		return nil, err
	}
	assoc, err := profile.Build()
	if err != nil {
		return nil, err
	}
	if err := assoc.Associate(); err != nil {
		return nil, err
	}
	return assoc, nil
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:  "get",
		Usage: "read an attribute",
		Flags: append(profileFlags(),
			&cli.IntFlag{Name: "attribute", Aliases: []string{"a"}, Value: 2}),
		Action: func(c *cli.Context) error {
			obis, err := dlms.ParseObisCode(c.String("obis"))
			if err != nil {
				return err
			}
			assoc, err := connect(c)
			if err != nil {
				return err
			}
			defer assoc.Release()

			value, err := assoc.Get(dlms.AttributeDescriptor{
				ClassId:     uint16(c.Uint("class")),
				InstanceId:  obis,
				AttributeId: int8(c.Int("attribute")),
			}, nil)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s = %v\n", obis, axdr.TagName(value.Tag), value.Value)
			return nil
		},
	}
}

func setCommand() *cli.Command {
	return &cli.Command{
		Name:  "set",
		Usage: "write an attribute",
		Flags: append(profileFlags(),
			&cli.IntFlag{Name: "attribute", Aliases: []string{"a"}, Value: 2},
			&cli.StringFlag{Name: "type", Value: "u32", Usage: "value type: bool, i8..i64, u8..u64, string, octet"},
			&cli.StringFlag{Name: "value", Required: true}),
		Action: func(c *cli.Context) error {
			obis, err := dlms.ParseObisCode(c.String("obis"))
			if err != nil {
				return err
			}
			value, err := parseValue(c.String("type"), c.String("value"))
			if err != nil {
				return err
			}
			assoc, err := connect(c)
			if err != nil {
				return err
			}
			defer assoc.Release()

			return assoc.Set(dlms.AttributeDescriptor{
				ClassId:     uint16(c.Uint("class")),
				InstanceId:  obis,
				AttributeId: int8(c.Int("attribute")),
			}, value, nil)
		},
	}
}

func actionCommand() *cli.Command {
	return &cli.Command{
		Name:  "action",
		Usage: "invoke a method",
		Flags: append(profileFlags(),
			&cli.IntFlag{Name: "method", Aliases: []string{"m"}, Value: 1}),
		Action: func(c *cli.Context) error {
			obis, err := dlms.ParseObisCode(c.String("obis"))
			if err != nil {
				return err
			}
			assoc, err := connect(c)
			if err != nil {
				return err
			}
			defer assoc.Release()

			returned, err := assoc.Action(dlms.MethodDescriptor{
				ClassId:    uint16(c.Uint("class")),
				InstanceId: obis,
				MethodId:   int8(c.Int("method")),
			}, nil)
			if err != nil {
				return err
			}
			if returned != nil {
				fmt.Printf("%s = %v\n", axdr.TagName(returned.Tag), returned.Value)
			}
			return nil
		},
	}
}

// parseValue maps a typed CLI string onto an A-XDR value.
func parseValue(kind, raw string) (axdr.Data, error) {
	switch kind {
	case "bool":
		return axdr.NewBoolean(raw == "true" || raw == "1"), nil
	case "i8", "i16", "i32", "i64":
		v, err := strconv.ParseInt(raw, 0, 64)
		if err != nil {
			return axdr.Data{}, err
		}
		switch kind {
		case "i8":
			return axdr.NewInteger8(int8(v)), nil
		case "i16":
			return axdr.NewInteger16(int16(v)), nil
		case "i32":
			return axdr.NewInteger32(int32(v)), nil
		}
		return axdr.NewInteger64(v), nil
	case "u8", "u16", "u32", "u64":
		v, err := strconv.ParseUint(raw, 0, 64)
		if err != nil {
			return axdr.Data{}, err
		}
		switch kind {
		case "u8":
			return axdr.NewUnsigned8(uint8(v)), nil
		case "u16":
			return axdr.NewUnsigned16(uint16(v)), nil
		case "u32":
			return axdr.NewUnsigned32(uint32(v)), nil
		}
		return axdr.NewUnsigned64(v), nil
	case "string":
		return axdr.NewVisibleString(raw), nil
	case "octet":
		parts := strings.ReplaceAll(raw, " ", "")
		decoded := make([]byte, 0, len(parts)/2)
		for i := 0; i+1 < len(parts); i += 2 {
			b, err := strconv.ParseUint(parts[i:i+2], 16, 8)
			if err != nil {
				return axdr.Data{}, err
			}
			decoded = append(decoded, byte(b))
		}
		return axdr.NewOctetString(decoded), nil
	default:
		return axdr.Data{}, fmt.Errorf("unknown value type %q", kind)
	}
}
