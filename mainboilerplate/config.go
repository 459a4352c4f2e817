package mainboilerplate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
)

// ConfigDirs returns directories searched for an INI configuration file:
//   - The current working directory.
//   - ~/.config/permalaunch (under the users's $HOME or %UserProfile% directory).
//   - $PERMALAUNCH_CONFIG_ROOT, if set.
func ConfigDirs(getenv func(string) string) []string {
	var dirs = []string{"."}

	for _, home := range []string{getenv("HOME"), getenv("UserProfile")} {
		if home != "" {
			dirs = append(dirs, filepath.Join(home, ".config", "permalaunch"))
		}
	}
	if root := getenv("PERMALAUNCH_CONFIG_ROOT"); root != "" {
		dirs = append(dirs, root)
	}
	return dirs
}

// ParseConfigFile parses the first INI file named |configName| found within
// |dirs| into the Parser, returning the path which was parsed or "" if none
// was found. Unknown options within the file are ignored.
func ParseConfigFile(parser *flags.Parser, configName string, dirs []string) (string, error) {
	var origOptions = parser.Options
	parser.Options |= flags.IgnoreUnknown
	defer func() { parser.Options = origOptions }()

	var iniParser = flags.NewIniParser(parser)

	for _, dir := range dirs {
		var path = filepath.Join(dir, configName)

		if err := iniParser.ParseFile(path); err == nil {
			return path, nil
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}
	return "", nil
}

// MustParseConfig requires that the Parser parse from the combination of an
// optional INI file, configured environment bindings, and explicit flags.
// The INI file is searched for in ConfigDirs.
func MustParseConfig(parser *flags.Parser, configName string) {
	if _, err := ParseConfigFile(parser, configName, ConfigDirs(os.Getenv)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	MustParseArgs(parser)
}

// MustParseArgs parses os.Args into the Parser, exiting on user input errors
// and panicking on errors of the Parser's own configuration.
func MustParseArgs(parser *flags.Parser) {
	var _, err = parser.ParseArgs(os.Args[1:])
	if err == nil {
		return
	}
	var flagErr *flags.Error
	if !errors.As(err, &flagErr) {
		Must(err, "fatal error")
	}

	switch flagErr.Type {
	case flags.ErrDuplicatedFlag, flags.ErrTag, flags.ErrInvalidTag, flags.ErrShortNameTooLong, flags.ErrMarshal:
		panic(err) // Malformed option structs.
	case flags.ErrHelp:
		if parser.Options&flags.PrintErrors == 0 {
			parser.WriteHelp(os.Stderr)
		}
		printVersion()
		os.Exit(0)
	case flags.ErrCommandRequired:
		fmt.Fprintln(os.Stderr)
		parser.WriteHelp(os.Stderr)
		printVersion()
		os.Exit(1)
	default:
		os.Exit(1) // go-flags already printed the error.
	}
}

func printVersion() {
	fmt.Fprintf(os.Stderr, "\npermalaunch %s (built %s)\n", Version, BuildDate)
}

// AddPrintConfigCmd to the Parser. The "print-config" command helps users test
// whether their deployments are correctly configured, by exporting all runtime
// configuration in INI format.
func AddPrintConfigCmd(parser *flags.Parser, configName string) {
	_, err := parser.AddCommand("print-config", "Print combined configuration and exit", `
print-config parses the combined configuration from `+configName+`, flags,
and environment variables, and then writes the configuration to stdout in INI format.

Secrets such as DEPLOY_KEY are included. Take care where the output is shared.
`, &printConfig{parser: parser})
	Must(err, "failed to add print-config command")
}

type printConfig struct {
	parser *flags.Parser
}

func (p *printConfig) Execute([]string) error {
	flags.NewIniParser(p.parser).Write(os.Stdout,
		flags.IniIncludeComments|flags.IniCommentDefaults|flags.IniIncludeDefaults)
	return nil
}
