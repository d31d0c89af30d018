package validation

// ValidCPF checks length, repeated digits and both check digits of a CPF
// given as 11 digits.
func ValidCPF(digits string) bool {
	if len(digits) != 11 {
		return false
	}
	allEqual := true
	for i := 0; i < 11; i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
		if digits[i] != digits[0] {
			allEqual = false
		}
	}
	if allEqual {
		return false
	}
	return checkDigit(digits[:9], 10) == digits[9]-'0' && checkDigit(digits[:10], 11) == digits[10]-'0'
}

func checkDigit(prefix string, weight int) byte {
	sum := 0
	for i := 0; i < len(prefix); i++ {
		sum += int(prefix[i]-'0') * (weight - i)
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		rest = 0
	}
	return byte(rest)
}

func digitsOnly(value string) string {
	out := make([]byte, 0, len(value))
	for i := 0; i < len(value); i++ {
		if value[i] >= '0' && value[i] <= '9' {
			out = append(out, value[i])
		}
	}
	return string(out)
}
