package vm

import (
	"fmt"

	"github.com/hooklang/hook/pkg/bytecode"
	"github.com/hooklang/hook/pkg/value"
)

// mutateMode picks how an element/field write opcode decides between
// mutating its container in place and cloning it (spec.md §4.6
// "Inplace* opcodes mutate when the target is uniquely owned
// (refcount == 1); otherwise they fall back to copy-on-write, as the
// non-inplace variants always do"). The opcode set further splits the
// non-conditional case in two: Set* always mutates (the compiler
// never emits it, but a native that already knows it holds the only
// reference can), Put* always clones.
type mutateMode int

const (
	forceMutate mutateMode = iota // Set*: mutate unconditionally
	alwaysClone                   // Put*: clone unconditionally
	ifUnique                      // InplacePut*: mutate iff RefCount() == 1
)

func (v *VM) shouldMutate(container value.Value, mode mutateMode) bool {
	switch mode {
	case forceMutate:
		return true
	case ifUnique:
		return container.Object().RefCount() == 1
	default:
		return false
	}
}

// elementAt reads index idx of container (an array or string),
// retaining the result.
func elementAt(container value.Value, idx int64) (value.Value, error) {
	switch {
	case container.IsArray():
		arr := container.AsArray()
		if idx < 0 || idx >= int64(arr.Len()) {
			return value.Value{}, indexOutOfRange(idx)
		}
		return value.Retain(arr.At(int(idx))), nil
	case container.IsString():
		s := container.AsString()
		if idx < 0 || idx >= int64(s.Len()) {
			return value.Value{}, indexOutOfRange(idx)
		}
		return value.Retain(value.FromString(value.NewStringFromBytes(s.Bytes()[idx : idx+1]))), nil
	default:
		return value.Value{}, typeErrorf("array or string", container.Type().String())
	}
}

// elementGet implements GetElement (consume=true, pops the container)
// and FetchElement (consume=false, leaves the container and the index
// on the stack beneath the result so a following Inplace* write can
// reuse them).
func (v *VM) elementGet(frame *callFrame, consume bool) (value.Value, error) {
	idxVal := v.peek(0)
	containerVal := v.peek(1)
	if !idxVal.IsInteger() {
		return value.Value{}, v.raise(frame, typeError("integer", idxVal.Type().String()))
	}
	result, err := elementAt(containerVal, idxVal.AsInt())
	if err != nil {
		return value.Value{}, v.raise(frame, "%s", err.Error())
	}
	if consume {
		v.pop() // index
		value.Release(v.pop())
	}
	return result, nil
}

// elementAdd implements AddElement/InplaceAddElement: stack is
// [container, value]; the result is always an append.
func (v *VM) elementAdd(frame *callFrame, inplace bool) error {
	val := v.pop()
	container := v.pop()
	if !container.IsArray() {
		value.Release(val)
		value.Release(container)
		return v.raise(frame, typeError("array", container.Type().String()))
	}
	arr := container.AsArray()
	mode := alwaysClone
	if inplace {
		mode = ifUnique
	}
	if v.shouldMutate(container, mode) {
		arr.AddInPlace(val)
		v.push(container)
		return nil
	}
	out := arr.Add(val)
	value.Release(val)
	value.Release(container)
	v.push(value.Retain(value.FromArray(out)))
	return nil
}

// elementDelete implements DeleteElement/InplaceDeleteElement: stack
// is [container, index].
func (v *VM) elementDelete(frame *callFrame, inplace bool) error {
	idxVal := v.pop()
	container := v.pop()
	if !idxVal.IsInteger() {
		value.Release(container)
		return v.raise(frame, typeError("integer", idxVal.Type().String()))
	}
	if !container.IsArray() {
		value.Release(container)
		return v.raise(frame, typeError("array", container.Type().String()))
	}
	arr := container.AsArray()
	idx := idxVal.AsInt()
	if idx < 0 || idx >= int64(arr.Len()) {
		value.Release(container)
		return v.raise(frame, "%s", indexOutOfRange(idx).Error())
	}
	mode := alwaysClone
	if inplace {
		mode = ifUnique
	}
	if v.shouldMutate(container, mode) {
		arr.DeleteInPlace(int(idx))
		v.push(container)
		return nil
	}
	out := arr.Delete(int(idx))
	value.Release(container)
	v.push(value.Retain(value.FromArray(out)))
	return nil
}

// elementPut implements SetElement (forceMutate), PutElement
// (alwaysClone), and InplacePutElement (ifUnique): stack is
// [container, index, value].
func (v *VM) elementPut(frame *callFrame, mode mutateMode) error {
	val := v.pop()
	idxVal := v.pop()
	container := v.pop()
	if !idxVal.IsInteger() {
		value.Release(val)
		value.Release(container)
		return v.raise(frame, typeError("integer", idxVal.Type().String()))
	}
	if !container.IsArray() {
		value.Release(val)
		value.Release(container)
		return v.raise(frame, typeError("array", container.Type().String()))
	}
	arr := container.AsArray()
	idx := idxVal.AsInt()
	if idx < 0 || idx >= int64(arr.Len()) {
		value.Release(val)
		value.Release(container)
		return v.raise(frame, "%s", indexOutOfRange(idx).Error())
	}
	if v.shouldMutate(container, mode) {
		arr.SetInPlace(int(idx), val)
		v.push(container)
		return nil
	}
	out := arr.Set(int(idx), val)
	value.Release(val)
	value.Release(container)
	v.push(value.Retain(value.FromArray(out)))
	return nil
}

// fieldGet implements GetField (consume=true) and FetchField
// (consume=false); idx is the constant-pool index of the field's
// name, resolved against the instance's own struct at runtime.
func (v *VM) fieldGet(frame *callFrame, chunk *bytecode.Chunk, nameIdx int, consume bool) (value.Value, error) {
	var instVal value.Value
	if consume {
		instVal = v.pop()
	} else {
		instVal = v.peek(0)
	}
	if !instVal.IsInstance() {
		if consume {
			value.Release(instVal)
		}
		return value.Value{}, v.raise(frame, typeError("instance", instVal.Type().String()))
	}
	inst := instVal.AsInstance()
	name := chunk.Constants.At(nameIdx).AsString().String()
	fieldIdx := inst.Struct.IndexOf(name)
	if fieldIdx == -1 {
		if consume {
			value.Release(instVal)
		}
		return value.Value{}, v.raise(frame, "instance has no field %q", name)
	}
	result := value.Retain(inst.FieldAt(fieldIdx))
	if consume {
		value.Release(instVal)
	}
	return result, nil
}

// fieldSetDynamic implements SetField: stack is
// [instance, fieldName, value], force-mutating in place.
func (v *VM) fieldSetDynamic(frame *callFrame) error {
	val := v.pop()
	nameVal := v.pop()
	instVal := v.pop()
	if !nameVal.IsString() || !instVal.IsInstance() {
		value.Release(val)
		value.Release(nameVal)
		value.Release(instVal)
		return v.raise(frame, typeError("instance and string", "other"))
	}
	name := nameVal.AsString().String()
	value.Release(nameVal)
	inst := instVal.AsInstance()
	fieldIdx := inst.Struct.IndexOf(name)
	if fieldIdx == -1 {
		value.Release(val)
		value.Release(instVal)
		return v.raise(frame, "instance has no field %q", name)
	}
	inst.SetFieldAtInPlace(fieldIdx, val)
	v.push(instVal)
	return nil
}

// fieldPut implements PutField (alwaysClone) and InplacePutField
// (ifUnique); idx is the constant-pool index of the field's name.
func (v *VM) fieldPut(frame *callFrame, chunk *bytecode.Chunk, nameIdx int, mode mutateMode) error {
	val := v.pop()
	instVal := v.pop()
	if !instVal.IsInstance() {
		value.Release(val)
		value.Release(instVal)
		return v.raise(frame, typeError("instance", instVal.Type().String()))
	}
	inst := instVal.AsInstance()
	name := chunk.Constants.At(nameIdx).AsString().String()
	fieldIdx := inst.Struct.IndexOf(name)
	if fieldIdx == -1 {
		value.Release(val)
		value.Release(instVal)
		return v.raise(frame, "instance has no field %q", name)
	}
	if v.shouldMutate(instVal, mode) {
		inst.SetFieldAtInPlace(fieldIdx, val)
		v.push(instVal)
		return nil
	}
	out := inst.SetField(name, val)
	value.Release(val)
	value.Release(instVal)
	v.push(value.Retain(value.FromInstance(out)))
	return nil
}

func indexOutOfRange(idx int64) error {
	return fmt.Errorf("index out of range: %d", idx)
}

func typeErrorf(want, got string) error {
	return fmt.Errorf(typeError(want, got))
}
