package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"path/filepath"

	"github.com/golang/glog"

	"github.com/weighworks/gatescale/pkg/bridge"
	"github.com/weighworks/gatescale/pkg/config"
	fx "github.com/weighworks/gatescale/pkg/framework"
	"github.com/weighworks/gatescale/pkg/gate"
	"github.com/weighworks/gatescale/pkg/httpapi"
	"github.com/weighworks/gatescale/pkg/scale"
)

var (
	confDir   = flag.String("conf-dir", "/var/lib/gatescale", "Directory for persisted settings.")
	scaleDev  = flag.String("scale-dev", "/dev/ttyUSB0", "Scale serial device.")
	httpAddr  = flag.String("http-addr", ":8080", "HTTP listen address.")
	brokerURL = flag.String("mqtt-broker", "", "MQTT broker URL. Empty disables the bridge.")
	pwmChip   = flag.String("pwm-chip", "", "Sysfs pwmchip directory. Empty logs shutter levels instead.")
	pwmCh0    = flag.Int("pwm-ch0", 0, "Shutter 0 PWM channel.")
	pwmCh1    = flag.Int("pwm-ch1", 1, "Shutter 1 PWM channel.")
)

func main() {
	flag.Parse()

	scalePath := filepath.Join(*confDir, "scale.toml")
	settingsDef := scale.DefaultSettings
	var settings scale.Settings
	if err := config.Load(scalePath, &settingsDef, &settings); err != nil {
		glog.Exitf("load %s: %v", scalePath, err)
	}

	gatePath := filepath.Join(*confDir, "gate.toml")
	gateDef := gate.DefaultConfig
	var gateCfg gate.Config
	if err := config.Load(gatePath, &gateDef, &gateCfg); err != nil {
		glog.Exitf("load %s: %v", gatePath, err)
	}

	port, err := scale.OpenPort(*scaleDev, settings.Baudrate, settings.Format)
	if err != nil {
		glog.Exitf("open %s: %v", *scaleDev, err)
	}
	defer port.Close()
	sc := scale.New(settings, port)

	var out gate.Output = gate.LogOutput{}
	if *pwmChip != "" {
		sysfs, err := gate.NewSysfsOutput(*pwmChip, *pwmCh0, *pwmCh1)
		if err != nil {
			glog.Exitf("pwm output: %v", err)
		}
		out = sysfs
	}
	gc := gate.NewController(gateCfg, out, fx.WallClock{})

	api := &httpapi.Server{
		Addr:  *httpAddr,
		Scale: sc,
		Gate:  gc,
		SaveScale: func() error {
			s := sc.Settings()
			return config.Save(scalePath, &s)
		},
		SaveGate: func() error {
			cfg := gc.Config()
			return config.Save(gatePath, &cfg)
		},
	}

	runner := fx.NewRunner().HandleSignals().Go(sc, gc, api)
	if *brokerURL != "" {
		runner.Go(&bridge.Bridge{BrokerURL: *brokerURL, Scale: sc, Gate: gc})
	}
	if err := runner.Wait(); err != nil {
		glog.Exit(err)
	}
}
