package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warden-hq/warden/internal/domain/auth"
)

var useArgon2id bool

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [api-key]",
	Short: "Generate a hash for an API key",
	Long: `Generate a hash of an API key for use in config.

By default the output is "sha256:<hex>", usable directly in the
auth.api_keys list. With --argon2id the output is a PHC-format Argon2id
hash, which is slower to verify but resistant to offline cracking.

Example:
  warden hash-key "my-secret-api-key"
  # Output: sha256:7d5e8c...

Security note: The key will appear in shell history.
Consider clearing history after use or using an environment variable:
  warden hash-key "$MY_API_KEY"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if useArgon2id {
			hash, err := auth.HashKeyArgon2id(args[0])
			if err != nil {
				return fmt.Errorf("argon2id hash failed: %w", err)
			}
			fmt.Println(hash)
			return nil
		}
		fmt.Println(auth.HashKeySHA256(args[0]))
		return nil
	},
}

func init() {
	hashKeyCmd.Flags().BoolVar(&useArgon2id, "argon2id", false, "use Argon2id instead of SHA-256")
	rootCmd.AddCommand(hashKeyCmd)
}
