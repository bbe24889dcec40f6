package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roeimichael/VarProject/internal/limitsconfig"
)

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Show or validate the risk limits profile",
	Long: `Limits come from the environment (SECTOR_PERCENTAGE_LIMIT, ...) and may be
overridden by a YAML profile named by RISK_LIMITS_FILE. Keys missing from the
profile keep their environment value; unknown keys are rejected.

Commands:
  show      print the active profile, its hash and warnings
  validate  check a profile file without running anything`,
}

var limitsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active limits profile",
	RunE:  runLimitsShow,
}

var limitsValidateCmd = &cobra.Command{
	Use:   "validate [profile.yaml]",
	Short: "Validate a limits profile",
	Long: `Example:
  go run ./cmd/varwatch limits validate config/limits/default.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLimitsValidate,
}

func init() {
	rootCmd.AddCommand(limitsCmd)
	limitsCmd.AddCommand(limitsShowCmd, limitsValidateCmd)
}

func runLimitsShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	p, err := limitsconfig.Resolve(cfg.Limits)
	if err != nil {
		return err
	}
	return printProfile(p)
}

func runLimitsValidate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	path := cfg.Limits.ProfilePath
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no profile given and RISK_LIMITS_FILE is not set")
	}

	p, _, err := limitsconfig.Load(path, limitsconfig.FromConfig(cfg.Limits))
	if err != nil {
		PrintError(err.Error())
		return err
	}

	PrintSuccess(fmt.Sprintf("%s is valid (profile %s)", path, p.Meta.ProfileID))
	return printProfile(p)
}

func printProfile(p *limitsconfig.Profile) error {
	hash, err := limitsconfig.Hash(p)
	if err != nil {
		return err
	}
	data, err := limitsconfig.Marshal(p)
	if err != nil {
		return err
	}

	PrintHeader(fmt.Sprintf("Risk limits: %s", p.Meta.ProfileID))
	os.Stdout.Write(data)
	PrintSeparator()
	PrintKeyValue("Hash", hash, 5)

	for _, w := range limitsconfig.Warn(p) {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}
	return nil
}
