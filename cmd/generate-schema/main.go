// Command generate-schema writes the JSON Schema of the relayout
// configuration file, for editor completion and CI validation of configs.
//
// Usage:
//
//	generate-schema [--output FILE]   # "-" writes to stdout
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/cephfs-relayout/pkg/config"
	"github.com/spf13/pflag"
)

// version is stamped at release time with -ldflags "-X main.version=v1.2.3".
var version = "dev"

const schemaID = "https://github.com/marmos91/cephfs-relayout/schema/config.schema.json"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	flags := pflag.NewFlagSet("generate-schema", pflag.ContinueOnError)
	output := flags.StringP("output", "o", "config.schema.json", "Schema file to write (\"-\" for stdout)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	// Positional form kept for scripts: generate-schema FILE
	if flags.NArg() > 0 {
		*output = flags.Arg(0)
	}

	data, err := generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling schema: %v\n", err)
		return 1
	}

	if *output == "-" {
		if _, err := stdout.Write(append(data, '\n')); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing schema: %v\n", err)
			return 1
		}
		return 0
	}

	if err := os.WriteFile(*output, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema file: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "JSON schema (relayout %s) written to %s\n", version, *output)
	return 0
}

// generate reflects config.Config using the yaml field names, since those are
// the keys users write.
func generate() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "yaml",
	}

	schema := reflector.Reflect(&config.Config{})
	schema.ID = jsonschema.ID(schemaID)
	// Version stays the draft URI set by the reflector; the release goes in
	// the description
	schema.Title = "relayout configuration"
	schema.Description = fmt.Sprintf("Configuration file of relayout %s, the CephFS layout reconciler. "+
		"Scalar keys can be overridden by RELAYOUT_* environment variables.", version)

	return json.MarshalIndent(schema, "", "  ")
}
