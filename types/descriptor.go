package types

import "strings"

// Category reports the operand-stack/local-variable category of a field
// descriptor: 2 for long/double ("J", "D"), 1 for everything else. Category-2
// values occupy two stack slots and two local slots (JVMS §2.6.2).
func Category(descriptor string) int {
	if descriptor == "J" || descriptor == "D" {
		return 2
	}
	return 1
}

// IsReference reports whether a single-field descriptor denotes a reference
// type: an object ("L...;") or an array ("[...").
func IsReference(descriptor string) bool {
	return strings.HasPrefix(descriptor, "L") || strings.HasPrefix(descriptor, "[")
}

// ParamDescriptors splits a method descriptor "(...)...;" into its parameter
// field descriptors, in order, without consuming the return type.
func ParamDescriptors(methodDescriptor string) []string {
	if !strings.HasPrefix(methodDescriptor, "(") {
		return nil
	}
	end := strings.IndexByte(methodDescriptor, ')')
	if end < 0 {
		return nil
	}
	body := methodDescriptor[1:end]
	var out []string
	for i := 0; i < len(body); {
		start := i
		for body[i] == '[' {
			i++
		}
		switch body[i] {
		case 'L':
			j := strings.IndexByte(body[i:], ';')
			i = i + j + 1
		default:
			i++
		}
		out = append(out, body[start:i])
	}
	return out
}

// ReturnDescriptor returns the return-type field descriptor of a method
// descriptor, "V" for void.
func ReturnDescriptor(methodDescriptor string) string {
	end := strings.IndexByte(methodDescriptor, ')')
	if end < 0 || end+1 >= len(methodDescriptor) {
		return "V"
	}
	return methodDescriptor[end+1:]
}

// ClassNameFromFieldDescriptor strips the "L" and ";" from an object field
// descriptor, returning "" if descriptor does not denote an object.
func ClassNameFromFieldDescriptor(descriptor string) string {
	if !strings.HasPrefix(descriptor, "L") || !strings.HasSuffix(descriptor, ";") {
		return ""
	}
	return descriptor[1 : len(descriptor)-1]
}

// ArgSlots returns the number of operand-stack/local-variable slots consumed
// by the parameters of methodDescriptor, category-aware.
func ArgSlots(methodDescriptor string) int {
	slots := 0
	for _, p := range ParamDescriptors(methodDescriptor) {
		slots += Category(p)
	}
	return slots
}
