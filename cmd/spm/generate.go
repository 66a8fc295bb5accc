package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mg2305/Secure-Password-Manager/pkg/security"
)

const (
	defaultPasswordCount = 1
	maxPasswordCount     = 100
	maxExcludeLength     = 256
)

// Generate command flags
var (
	generateLength        int
	generateCount         int
	generateNoPunctuation bool
	generateNoDigits      bool
	generateNoUppercase   bool
	generateNoLowercase   bool
	generateExclude       string
	generateCopy          bool
)

func init() {
	generateCmd.Flags().IntVarP(&generateLength, "length", "l", security.DefaultLength, fmt.Sprintf("Password length (%d-%d)", security.MinLength, security.MaxLength))
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", defaultPasswordCount, fmt.Sprintf("Number of passwords to generate (1-%d)", maxPasswordCount))
	generateCmd.Flags().BoolVar(&generateNoPunctuation, "no-symbols", false, "Exclude punctuation")
	generateCmd.Flags().BoolVar(&generateNoDigits, "no-numbers", false, "Exclude digits")
	generateCmd.Flags().BoolVar(&generateNoUppercase, "no-uppercase", false, "Exclude uppercase letters")
	generateCmd.Flags().BoolVar(&generateNoLowercase, "no-lowercase", false, "Exclude lowercase letters")
	generateCmd.Flags().StringVar(&generateExclude, "exclude", "", "Characters to exclude")
	generateCmd.Flags().BoolVarP(&generateCopy, "copy", "c", false, "Copy the first password to the clipboard")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate secure random passwords",
	Long: `Generate random passwords from letters, digits and punctuation.

Examples:
  # One 20-character password
  spm generate

  # Five 32-character passwords without punctuation
  spm generate -l 32 -n 5 --no-symbols

  # Skip ambiguous characters and copy to the clipboard
  spm generate --exclude "0O1lI" -c`,
	Annotations: map[string]string{"standalone": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeGenerate(cmd.OutOrStdout(), cmd.ErrOrStderr(), systemClipboard{})
	},
}

func executeGenerate(out, errOut io.Writer, clip clipboardWriter) error {
	if err := validateGenerateFlags(); err != nil {
		return err
	}
	opts := generateOptions()

	passwords := make([]string, generateCount)
	for i := range passwords {
		pw, err := security.GeneratePassword(opts)
		if err != nil {
			return fmt.Errorf("failed to generate password: %w", err)
		}
		passwords[i] = pw
	}

	for _, pw := range passwords {
		fmt.Fprintln(out, pw)
	}

	if generateCopy {
		if err := clip.WriteAll(passwords[0]); err != nil {
			fmt.Fprintf(errOut, "Warning: failed to copy to clipboard: %v\n", err)
		} else {
			fmt.Fprintln(errOut, "Password copied to clipboard")
		}
	}
	return nil
}

// validateGenerateFlags validates the generate command flags
func validateGenerateFlags() error {
	if generateLength < security.MinLength || generateLength > security.MaxLength {
		return fmt.Errorf("password length must be between %d and %d characters", security.MinLength, security.MaxLength)
	}
	if generateCount < 1 || generateCount > maxPasswordCount {
		return fmt.Errorf("count must be between 1 and %d", maxPasswordCount)
	}
	if len(generateExclude) > maxExcludeLength {
		return fmt.Errorf("exclude string must be at most %d characters", maxExcludeLength)
	}
	if generateOptions().Charset() == "" {
		return fmt.Errorf("character set is empty: adjust flags to include at least one character type")
	}
	return nil
}

func generateOptions() security.GenerateOptions {
	return security.GenerateOptions{
		Length:      generateLength,
		Lowercase:   !generateNoLowercase,
		Uppercase:   !generateNoUppercase,
		Digits:      !generateNoDigits,
		Punctuation: !generateNoPunctuation,
		Exclude:     generateExclude,
	}
}
