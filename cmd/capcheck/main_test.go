package main

import "testing"

func TestYesNo(t *testing.T) {
	if yesNo(true) != "yes" {
		t.Errorf("yesNo(true) = %q", yesNo(true))
	}
	if yesNo(false) != "no" {
		t.Errorf("yesNo(false) = %q", yesNo(false))
	}
}
