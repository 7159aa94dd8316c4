// Command admingen emits typed Prop[T] constructor wrappers around
// Administration.AddObservableProp/AddComputedProp for a fixed list of
// primitive types, so callers don't have to spell out the generic
// instantiation by hand at every call site.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"github.com/valyala/quicktemplate"
)

const (
	typesKey = "types"
	outKey   = "out"
	pkgKey   = "package"
)

func main() {
	cmd := &cli.Command{
		Name:  "admingen",
		Usage: "Generate typed Prop[T] constructors for reactor.Administration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  typesKey,
				Usage: "comma-separated Go primitive types to generate constructors for",
				Value: "string,int,int64,float64,bool",
			},
			&cli.StringFlag{
				Name:  outKey,
				Usage: "output file path",
				Value: "reactor/prop_gen.go",
			},
			&cli.StringFlag{
				Name:  pkgKey,
				Usage: "package name for the generated file",
				Value: "reactor",
			},
		},
		Action: generate,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func generate(ctx context.Context, cmd *cli.Command) error {
	types := strings.Split(cmd.String(typesKey), ",")
	for i := range types {
		types[i] = strings.TrimSpace(types[i])
	}

	bb := quicktemplate.AcquireByteBuffer()
	defer quicktemplate.ReleaseByteBuffer(bb)

	writePreamble(bb, cmd.String(pkgKey), types)
	for _, t := range types {
		writeObservableCtor(bb, t)
		writeComputedCtor(bb, t)
	}

	return os.WriteFile(cmd.String(outKey), bb.B, 0o644)
}

// writePreamble emits the file header and a comment naming every type this
// run generated a pair of constructors for.
func writePreamble(bb *quicktemplate.ByteBuffer, pkg string, types []string) {
	fmt.Fprintf(bb, "package %s\n\n", pkg)
	fmt.Fprintf(bb, "// Generated constructors for: %s\n\n", strings.Join(types, ", "))
}

// writeObservableCtor emits a NewObservableProp<Type> wrapper around
// AddObservableProp, giving callers a named function instead of having to
// spell out the generic instantiation at every call site.
func writeObservableCtor(bb *quicktemplate.ByteBuffer, goType string) {
	exported := exportedName(goType)
	fmt.Fprintf(bb, `// NewObservableProp%s adds an observable %s property to admin.
func NewObservableProp%s(admin *Administration, name string, initial %s, enhancer Enhancer[%s]) (*Prop[%s], error) {
	return AddObservableProp(admin, name, initial, enhancer)
}

`, exported, goType, exported, goType, goType, goType)
}

// writeComputedCtor emits a NewComputedProp<Type> wrapper around
// AddComputedProp.
func writeComputedCtor(bb *quicktemplate.ByteBuffer, goType string) {
	exported := exportedName(goType)
	fmt.Fprintf(bb, `// NewComputedProp%s adds a computed %s property to admin.
func NewComputedProp%s(admin *Administration, name string, fn func(old %s) (%s, error), opts ComputedPropOptions[%s]) (*Prop[%s], error) {
	return AddComputedProp(admin, name, fn, opts)
}

`, exported, goType, exported, goType, goType, goType, goType)
}

// exportedName turns a lowercase Go type name into an exported identifier
// suffix, e.g. "int64" -> "Int64", "float64" -> "Float64".
func exportedName(goType string) string {
	if goType == "" {
		return goType
	}
	return strings.ToUpper(goType[:1]) + goType[1:]
}
