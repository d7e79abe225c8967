package reportrunner

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type showPayload struct {
	ConfigFile  string       `yaml:"config_file,omitempty"`
	Profile     string       `yaml:"profile,omitempty"`
	Connection  ConnConfig   `yaml:"connection"`
	Password    string       `yaml:"password"`
	HistoryFile string       `yaml:"history_file,omitempty"`
	Reports     []showReport `yaml:"reports"`
}

type showReport struct {
	Key       string   `yaml:"key"`
	Procedure string   `yaml:"procedure"`
	Params    []string `yaml:"params,flow,omitempty"`
}

// writeShow prints the resolved configuration. The password is never printed,
// only whether its reference resolves.
func writeShow(w io.Writer, p showPayload, credentialErr error) error {
	switch {
	case credentialErr != nil:
		p.Password = "unresolved: " + credentialErr.Error()
	case p.Connection.Credential == "":
		p.Password = "none"
	default:
		p.Password = "set"
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal show output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func showReports(reports []Report) []showReport {
	out := make([]showReport, 0, len(reports))
	for _, r := range reports {
		sr := showReport{Key: r.Key, Procedure: r.Procedure}
		for _, p := range r.Params {
			sr.Params = append(sr.Params, fmt.Sprintf("%s=%d", p.Name, p.Value))
		}
		out = append(out, sr)
	}
	return out
}
