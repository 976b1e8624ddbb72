package gateway

import "testing"

func TestVerifySignature_RoundTrip(t *testing.T) {
	secret := "test_key_secret"
	sig := Sign("order_1", "pay_1", secret)
	if !VerifySignature("order_1", "pay_1", sig, secret) {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifySignature_SingleCharacterMutation(t *testing.T) {
	secret := "test_key_secret"
	sig := Sign("order_1", "pay_1", secret)
	for i := 0; i < len(sig); i++ {
		mutated := []byte(sig)
		if mutated[i] == 'a' {
			mutated[i] = 'b'
		} else {
			mutated[i] = 'a'
		}
		if VerifySignature("order_1", "pay_1", string(mutated), secret) {
			t.Fatalf("mutated signature at index %d verified", i)
		}
	}
}

func TestVerifySignature_WrongIdentifiers(t *testing.T) {
	secret := "test_key_secret"
	sig := Sign("order_1", "pay_1", secret)
	if VerifySignature("order_2", "pay_1", sig, secret) {
		t.Fatal("signature verified against a different order id")
	}
	if VerifySignature("order_1", "pay_2", sig, secret) {
		t.Fatal("signature verified against a different payment id")
	}
	if VerifySignature("order_1", "pay_1", sig, "other_secret") {
		t.Fatal("signature verified with a different secret")
	}
}

func TestVerifySignature_FailsClosedOnMissingInput(t *testing.T) {
	secret := "test_key_secret"
	sig := Sign("order_1", "pay_1", secret)
	cases := [][4]string{
		{"", "pay_1", sig, secret},
		{"order_1", "", sig, secret},
		{"order_1", "pay_1", "", secret},
		{"order_1", "pay_1", sig, ""},
	}
	for _, c := range cases {
		if VerifySignature(c[0], c[1], c[2], c[3]) {
			t.Fatalf("verification passed with missing input: %v", c)
		}
	}
}
