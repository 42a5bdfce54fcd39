package policy

import (
	"context"
	"embed"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
)

//go:embed rego/*.rego
var builtinPolicies embed.FS

const query = "data.privilege"

// loadModules reads every .rego file in policyDir. Built-in policies are used when policyDir is empty or holds no Rego files.
func loadModules(policyDir string) ([]func(*rego.Rego), error) {
	if policyDir != "" {
		files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", policyDir))
		}

		if len(files) > 0 {
			modules := make([]func(*rego.Rego), 0, len(files))
			for _, file := range files {
				data, err := os.ReadFile(file)
				if err != nil {
					return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
				}
				modules = append(modules, rego.Module(file, string(data)))
			}
			return modules, nil
		}
	}

	entries, err := builtinPolicies.ReadDir("rego")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read built-in policies")
	}

	modules := make([]func(*rego.Rego), 0, len(entries))
	for _, entry := range entries {
		path := "rego/" + entry.Name()
		data, err := builtinPolicies.ReadFile(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read built-in policy", goerr.V("path", path))
		}
		modules = append(modules, rego.Module(path, string(data)))
	}
	return modules, nil
}

func prepareQuery(ctx context.Context, modules []func(*rego.Rego)) (*rego.PreparedEvalQuery, error) {
	options := make([]func(*rego.Rego), 0, len(modules)+1)
	options = append(options, rego.Query(query))
	options = append(options, modules...)

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare query", goerr.V("query", query))
	}

	return &prepared, nil
}
