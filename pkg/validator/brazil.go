package validator

// OnlyDigits strips every non-digit rune from s.
func OnlyDigits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// IsCPF reports whether s is a valid CPF. Punctuation ("123.456.789-09") is
// ignored; sequences of a single repeated digit are rejected.
func IsCPF(s string) bool {
	d := OnlyDigits(s)
	if len(d) != 11 {
		return false
	}

	repeated := true
	for i := 1; i < 11; i++ {
		if d[i] != d[0] {
			repeated = false
			break
		}
	}
	if repeated {
		return false
	}

	return cpfCheckDigit(d[:9]) == d[9] && cpfCheckDigit(d[:10]) == d[10]
}

// cpfCheckDigit computes the mod-11 check digit over the given prefix using
// weights len+1 down to 2.
func cpfCheckDigit(prefix string) byte {
	sum := 0
	weight := len(prefix) + 1
	for i := 0; i < len(prefix); i++ {
		sum += int(prefix[i]-'0') * weight
		weight--
	}
	rem := (sum * 10) % 11
	if rem == 10 {
		rem = 0
	}
	return byte('0' + rem)
}

// IsCEP reports whether s is a Brazilian postal code: eight digits, with an
// optional hyphen ("01310-100").
func IsCEP(s string) bool {
	if len(s) != 8 && len(s) != 9 {
		return false
	}
	if len(s) == 9 && s[5] != '-' {
		return false
	}
	return len(OnlyDigits(s)) == 8
}
