// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package registry

import "math"

// BuiltinModule is the name of the module whose members are implicitly
// available in every compilation unit.  Bare-identifier calls resolve
// against its function set, and are emitted as "builtin.<name>" so that all
// builtin access routes through the controlled module object.
const BuiltinModule = "builtin"

// variadic marks a function accepting any number of arguments.
const variadic = uint(math.MaxUint32)

// BUILTIN_FUNCTIONS is the descriptor table of the builtin module.  These
// names form the bare-identifier whitelist; the matching implementations
// live in the emitted runtime helper library.
var BUILTIN_FUNCTIONS = []FunctionMetadata{
	// Numeric conversions
	{Name: "int", MinArity: 1, MaxArity: 1, Description: "convert a value to an integer"},
	{Name: "float", MinArity: 1, MaxArity: 1, Description: "convert a value to a float"},
	{Name: "str", MinArity: 1, MaxArity: 1, Description: "convert a value to a string"},
	{Name: "bool", MinArity: 1, MaxArity: 1, Description: "convert a value to a boolean"},
	// Collections
	{Name: "len", MinArity: 1, MaxArity: 1, Description: "number of elements in a collection"},
	{Name: "range", MinArity: 1, MaxArity: 3, Description: "sequence of integers"},
	{Name: "enumerate", MinArity: 1, MaxArity: 1, Description: "pairs of (index, element)"},
	{Name: "keys", MinArity: 1, MaxArity: 1, Description: "keys of an object"},
	{Name: "values", MinArity: 1, MaxArity: 1, Description: "values of an object"},
	{Name: "append", MinArity: 2, MaxArity: 2, Description: "array with an element appended"},
	{Name: "sorted", MinArity: 1, MaxArity: 1, Description: "sorted copy of an array"},
	{Name: "reversed", MinArity: 1, MaxArity: 1, Description: "reversed copy of an array"},
	// Numeric helpers
	{Name: "abs", MinArity: 1, MaxArity: 1, Description: "absolute value"},
	{Name: "min", MinArity: 1, MaxArity: variadic, Description: "minimum of the arguments"},
	{Name: "max", MinArity: 1, MaxArity: variadic, Description: "maximum of the arguments"},
	{Name: "sum", MinArity: 1, MaxArity: 1, Description: "sum of an array"},
	{Name: "round", MinArity: 1, MaxArity: 2, Description: "round to a given precision"},
	// I/O
	{Name: "print", MinArity: 0, MaxArity: variadic, Description: "print values to standard output"},
	// Type predicates
	{Name: "typeof", MinArity: 1, MaxArity: 1, Description: "type name of a value"},
	{Name: "is_int", MinArity: 1, MaxArity: 1, Description: "true if the value is an integer"},
	{Name: "is_float", MinArity: 1, MaxArity: 1, Description: "true if the value is a float"},
	{Name: "is_string", MinArity: 1, MaxArity: 1, Description: "true if the value is a string"},
	{Name: "is_bool", MinArity: 1, MaxArity: 1, Description: "true if the value is a boolean"},
	{Name: "is_array", MinArity: 1, MaxArity: 1, Description: "true if the value is an array"},
	{Name: "is_object", MinArity: 1, MaxArity: 1, Description: "true if the value is an object"},
	{Name: "is_function", MinArity: 1, MaxArity: 1, Description: "true if the value is callable"},
	// Safe dynamic access.  These are deliberately permitted: their
	// implementations enforce the underscore rule at runtime.
	{Name: "getattr", MinArity: 2, MaxArity: 3, Description: "safe attribute lookup with optional default"},
	{Name: "hasattr", MinArity: 2, MaxArity: 2, Description: "safe attribute presence check"},
	{Name: "setattr", MinArity: 3, MaxArity: 3, Description: "safe attribute assignment"},
	{Name: "call", MinArity: 1, MaxArity: variadic, Description: "safe dynamic invocation"},
	// Capability introspection
	{Name: "has_capability", MinArity: 1, MaxArity: 1, Description: "true if a capability type is live"},
	{Name: "get_capabilities", MinArity: 0, MaxArity: 0, Description: "live capability type names"},
	{Name: "get_capability_info", MinArity: 1, MaxArity: 1, Description: "details of a live capability"},
	{Name: "required_capabilities", MinArity: 1, MaxArity: 1, Description: "capability types a function requires"},
}

// MATH_FUNCTIONS is the descriptor table of the native math module.
var MATH_FUNCTIONS = []FunctionMetadata{
	{Name: "sqrt", MinArity: 1, MaxArity: 1, Description: "square root"},
	{Name: "pow", MinArity: 2, MaxArity: 2, Description: "exponentiation"},
	{Name: "floor", MinArity: 1, MaxArity: 1, Description: "round down"},
	{Name: "ceil", MinArity: 1, MaxArity: 1, Description: "round up"},
	{Name: "sin", MinArity: 1, MaxArity: 1, Description: "sine"},
	{Name: "cos", MinArity: 1, MaxArity: 1, Description: "cosine"},
	{Name: "tan", MinArity: 1, MaxArity: 1, Description: "tangent"},
	{Name: "log", MinArity: 1, MaxArity: 2, Description: "logarithm"},
	{Name: "pi", MinArity: 0, MaxArity: 0, Description: "the constant pi"},
}

// STRING_FUNCTIONS is the descriptor table of the native string module.
var STRING_FUNCTIONS = []FunctionMetadata{
	{Name: "upper", MinArity: 1, MaxArity: 1, Description: "uppercase copy"},
	{Name: "lower", MinArity: 1, MaxArity: 1, Description: "lowercase copy"},
	{Name: "strip", MinArity: 1, MaxArity: 1, Description: "whitespace-trimmed copy"},
	{Name: "split", MinArity: 1, MaxArity: 2, Description: "split on a separator"},
	{Name: "join", MinArity: 2, MaxArity: 2, Description: "join an array with a separator"},
	{Name: "replace", MinArity: 3, MaxArity: 3, Description: "replace occurrences of a substring"},
	{Name: "contains", MinArity: 2, MaxArity: 2, Description: "substring containment"},
	{Name: "starts_with", MinArity: 2, MaxArity: 2, Description: "prefix check"},
	{Name: "ends_with", MinArity: 2, MaxArity: 2, Description: "suffix check"},
}

// FILE_FUNCTIONS is the descriptor table of the native file module.  Every
// entry requires a capability, making this the canonical capability-guarded
// module.
var FILE_FUNCTIONS = []FunctionMetadata{
	{Name: "read", MinArity: 1, MaxArity: 1, Capabilities: []string{"FileRead"},
		Description: "read the contents of a file"},
	{Name: "write", MinArity: 2, MaxArity: 2, Capabilities: []string{"FileWrite"},
		Description: "write a string to a file"},
	{Name: "exists", MinArity: 1, MaxArity: 1, Capabilities: []string{"FileRead"},
		Description: "check whether a file exists"},
}

// nativeModules assembles the native stdlib descriptor set.
func nativeModules() []*ModuleMetadata {
	return []*ModuleMetadata{
		newNativeModule(BuiltinModule, BUILTIN_FUNCTIONS),
		newNativeModule("math", MATH_FUNCTIONS),
		newNativeModule("string", STRING_FUNCTIONS),
		newNativeModule("file", FILE_FUNCTIONS),
	}
}

func newNativeModule(name string, fns []FunctionMetadata) *ModuleMetadata {
	functions := make(map[string]FunctionMetadata, len(fns))
	//
	for _, fn := range fns {
		functions[fn.Name] = fn
	}
	//
	return &ModuleMetadata{Name: name, Version: "1.0", Functions: functions, materialized: true}
}
