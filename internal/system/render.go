package system

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/veilnet/veil-deploy/internal/config"
)

// unitTemplate is the hardened systemd unit installed for the proxy.
//
//go:embed templates/unit.tmpl
var unitTemplate string

// wrapperTemplate is the generated launcher script the unit executes.
// It re-reads the runtime configuration at every service start.
//
//go:embed templates/wrapper.tmpl.sh
var wrapperTemplate string

// unitParams are the fields substituted into the unit template.
type unitParams struct {
	ReleaseOwner string
	ReleaseRepo  string
	ServiceUser  string
	WrapperPath  string
	ConfigDir    string
}

// wrapperParams are the fields substituted into the wrapper template.
type wrapperParams struct {
	BinaryPath string
	ConfigPath string
}

// RenderUnit produces the systemd unit file contents for the deployment layout.
func RenderUnit(settings *config.Settings) ([]byte, error) {
	return render("unit", unitTemplate, unitParams{
		ReleaseOwner: settings.ReleaseOwner,
		ReleaseRepo:  settings.ReleaseRepo,
		ServiceUser:  settings.ServiceUser,
		WrapperPath:  settings.WrapperPath,
		ConfigDir:    settings.ConfigDir,
	})
}

// RenderWrapper produces the launcher script contents for the deployment layout.
func RenderWrapper(settings *config.Settings) ([]byte, error) {
	return render("wrapper", wrapperTemplate, wrapperParams{
		BinaryPath: settings.BinaryPath,
		ConfigPath: settings.RuntimeConfigPath(),
	})
}

// render executes one embedded template.
func render(name, text string, params any) ([]byte, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s template: %w", name, err)
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, params); err != nil {
		return nil, fmt.Errorf("render %s template: %w", name, err)
	}

	return buf.Bytes(), nil
}
