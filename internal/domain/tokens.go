package domain

// TokenType identifies a settlement token on the distributed-ledger rail.
type TokenType string

const (
	TokenXRP   TokenType = "XRP"
	TokenRLUSD TokenType = "RLUSD"
	TokenUSDC  TokenType = "USDC"
	TokenUSDT  TokenType = "USDT"
)

// TrackedTokens is the fixed set of tokens priced at payment-link creation.
var TrackedTokens = []TokenType{TokenXRP, TokenRLUSD, TokenUSDC, TokenUSDT}

// Chart-of-accounts codes. Clearing accounts hold funds received via one rail
// until reconciliation; each token clears through its own account so funds
// can never be misclassified between tokens.
const (
	AccountCodeCardClearing  = "1050"
	AccountCodeXRPClearing   = "1051"
	AccountCodeRLUSDClearing = "1052"
	AccountCodeUSDCClearing  = "1053"
	AccountCodeUSDTClearing  = "1054"
	AccountCodeBankClearing  = "1060"
	AccountCodeReceivable    = "1100"
	AccountCodeFeeExpense    = "6050"
)

var tokenClearingAccounts = map[TokenType]string{
	TokenXRP:   AccountCodeXRPClearing,
	TokenRLUSD: AccountCodeRLUSDClearing,
	TokenUSDC:  AccountCodeUSDCClearing,
	TokenUSDT:  AccountCodeUSDTClearing,
}

// ClearingAccountForToken returns the clearing account code mapped to token.
// Unknown tokens fail closed; there is no default account.
func ClearingAccountForToken(token TokenType) (string, error) {
	code, ok := tokenClearingAccounts[token]
	if !ok {
		return "", FieldError(KindMissingAccount, "tokenType", "no clearing account mapped for token %q", token)
	}

	return code, nil
}

// ValidateTokenAccountMapping verifies that code is exactly the clearing
// account mapped to token. Posting rules call this immediately before
// posting, independently of the lookup, so a coding mistake elsewhere cannot
// route one token's funds into another token's account.
func ValidateTokenAccountMapping(token TokenType, code string) error {
	expected, err := ClearingAccountForToken(token)
	if err != nil {
		return err
	}

	if code != expected {
		return Errorf(KindMissingAccount,
			"account code %s does not match clearing account %s for token %s", code, expected, token)
	}

	return nil
}

// TokenAccountSpecs lists the accounts the distributed-ledger rail requires.
func TokenAccountSpecs() []AccountSpec {
	return []AccountSpec{
		{Code: AccountCodeXRPClearing, Name: "XRP Clearing", Type: AccountTypeAsset},
		{Code: AccountCodeRLUSDClearing, Name: "RLUSD Clearing", Type: AccountTypeAsset},
		{Code: AccountCodeUSDCClearing, Name: "USDC Clearing", Type: AccountTypeAsset},
		{Code: AccountCodeUSDTClearing, Name: "USDT Clearing", Type: AccountTypeAsset},
		{Code: AccountCodeReceivable, Name: "Accounts Receivable", Type: AccountTypeAsset},
	}
}

// CardAccountSpecs lists the accounts the card rail requires.
func CardAccountSpecs() []AccountSpec {
	return []AccountSpec{
		{Code: AccountCodeCardClearing, Name: "Card Clearing", Type: AccountTypeAsset},
		{Code: AccountCodeReceivable, Name: "Accounts Receivable", Type: AccountTypeAsset},
		{Code: AccountCodeFeeExpense, Name: "Payment Processing Fees", Type: AccountTypeExpense},
	}
}

// BankAccountSpecs lists the accounts the bank-transfer rail requires.
func BankAccountSpecs() []AccountSpec {
	return []AccountSpec{
		{Code: AccountCodeBankClearing, Name: "Bank Transfer Clearing", Type: AccountTypeAsset},
		{Code: AccountCodeReceivable, Name: "Accounts Receivable", Type: AccountTypeAsset},
	}
}

// peggedQuotes maps tokens with an intended 1:1 peg to their reference
// currency. Deviation beyond the advisory threshold is logged, never blocked.
var peggedQuotes = map[TokenType]string{
	TokenRLUSD: "USD",
	TokenUSDC:  "USD",
	TokenUSDT:  "USD",
}

// PeggedReferenceCurrency returns the reference currency for a 1:1-pegged
// token, or false when the token floats.
func PeggedReferenceCurrency(token TokenType) (string, bool) {
	quote, ok := peggedQuotes[token]
	return quote, ok
}
