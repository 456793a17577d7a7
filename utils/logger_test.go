/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"trace":   logrus.TraceLevel,
		"DEBUG":   logrus.DebugLevel,
		" warn ":  logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"":        logrus.InfoLevel,
		"bogus":   logrus.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLogLevel(in), "input %q", in)
	}
}

func TestNewLoggerIsRegistered(t *testing.T) {
	a := NewLogger("REGISTRY")
	b := NewLogger("REGISTRY")
	assert.Same(t, a, b)

	assert.True(t, SetLoggerLevel("REGISTRY", "error"))
	assert.Equal(t, logrus.ErrorLevel, a.GetLevel())
	assert.False(t, SetLoggerLevel("MISSING", "error"))
}

func TestLog4jFormatter(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&Log4jFormatter{LoggerName: "TEST", NameWidth: 6, NoColor: true})

	l.WithField("table", "books").Info("query composed")

	out := buf.String()
	assert.Contains(t, out, " INFO ")
	assert.Contains(t, out, "[  TEST]")
	assert.Contains(t, out, ": query composed table=books")
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("CRUDX_TEST_STR", "value")
	t.Setenv("CRUDX_TEST_BOOL", "true")
	t.Setenv("CRUDX_TEST_BAD_BOOL", "nope")

	assert.Equal(t, "value", EnvDefaultString("CRUDX_TEST_STR", "def"))
	assert.Equal(t, "def", EnvDefaultString("CRUDX_TEST_UNSET", "def"))
	assert.True(t, EnvDefaultBool("CRUDX_TEST_BOOL", false))
	assert.True(t, EnvDefaultBool("CRUDX_TEST_BAD_BOOL", true))
	assert.False(t, EnvDefaultBool("CRUDX_TEST_UNSET", false))
}
